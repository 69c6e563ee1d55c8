package main

func main() {
	app := mustBootstrapLiveTrack()
	defer app.Close()

	if err := app.Run(); err != nil && !isContextDone(err) {
		panic(err)
	}
}
