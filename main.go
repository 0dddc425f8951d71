// Copyright 2020 MMbros <server.mmbros@yandex.com>.
// Use of this source code is governed by Apache License.

/*
pricewatch is a command line utility that tracks instrument prices
through an ordered chain of sources, keeping history and rendered
snapshot pages.

  pricewatch <sub-command>

Available sub-commands are:

  get       Get the prices of the configured instruments
  backfill  Fill the price history of the last days from the batch sources
  sources   Show available source kinds


*/
package main

import "github.com/mmbros/pricewatch/cmd"

func main() {
	cmd.Execute()
}
