package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/trezcool/siku/core"
	logsvc "github.com/trezcool/siku/services/logger"
	sqlitecache "github.com/trezcool/siku/storage/cache/sqlite"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(log.New(os.Stderr, "SIKU : ", log.LstdFlags), conf)
	logger.Enable(!conf.Debug)

	open := func(cmd *cobra.Command) (*device, func(), error) {
		cache, err := sqlitecache.Open(cmd.Context(), conf.Device.CachePath)
		if err != nil {
			return nil, nil, err
		}
		d, err := newDevice(conf, cache, nil, logger)
		if err != nil {
			_ = cache.Close()
			return nil, nil, err
		}
		return d, func() { _ = cache.Close() }, nil
	}

	if err := NewRootCommand(open).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
