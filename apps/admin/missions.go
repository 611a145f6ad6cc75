package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/siku/core/mission"
)

func (cli *commandLine) loadMissions(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "opening catalog")
	}
	defer func() { _ = f.Close() }()

	rows, err := mission.DecodeRows(f, mission.FormatOf(path))
	if err != nil {
		return err
	}
	created, err := cli.missionSvc.ImportRows(context.Background(), rows, cli.now())
	if err != nil {
		return err
	}
	for _, g := range mission.Group(created) {
		fmt.Fprintf(cli.out, "day %d: %d missions, %d points\n", g.Day, len(g.Missions), g.Points())
	}
	return nil
}

func (cli *commandLine) archive(now time.Time) error {
	n, err := cli.missionSvc.ArchivePastDays(context.Background(), now)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "archived %d missions\n", n)
	return nil
}
