// Command reset-counter1 resets the "counter1" model of a simulator on localhost.
package main

import (
	"context"
	"fmt"
	"os"
	"smp2client/client"
	"smp2client/logging"
	"smp2client/message"

	"go.uber.org/zap"
)

func main() {
	os.Exit(run())
}

func run() int {
	logger, err := logging.New("info")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer logger.Sync()

	cli, err := client.Dial(client.DefaultHost, client.DefaultPort, client.WithLogger(logger))
	if err != nil {
		logger.Error("connect failed", zap.Error(err))
		return 1
	}
	defer cli.Close()

	result, err := cli.ModelRequest(context.Background(), "reset", "counter1", message.Params{})
	if err != nil {
		logger.Error(err.Error())
		return 1
	}
	if result != nil {
		fmt.Println(string(result))
	}
	return 0
}
