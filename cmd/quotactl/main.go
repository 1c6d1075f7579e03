package main

import "github.com/ineyio/quotaledger/cmd/quotactl/cmd"

func main() {
	cmd.Execute()
}
