package main

import (
	"flag"

	"kyri56xcaesar/marathon-proj/internal/mteam"
)

var confPath = flag.String("config", "configs/mteam.env", "path to the .env configuration file")

func main() {
	flag.Parse()
	mteam.InitAndServe(*confPath)
}
