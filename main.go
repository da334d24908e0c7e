package main

import "votechain/cmd/votechain"

func main() {
	votechain.Execute()
}
