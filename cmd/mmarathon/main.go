package main

import (
	"flag"

	"kyri56xcaesar/marathon-proj/internal/mmarathon"
)

var confPath = flag.String("config", "configs/mmarathon.env", "path to the .env configuration file")

func main() {
	flag.Parse()
	mmarathon.InitAndServe(*confPath)
}
