package main

import "context"

func (cli *commandLine) sweep(ctx context.Context) error {
	res, err := cli.sweeper.SweepOverdue(ctx)
	if err != nil {
		return err
	}
	logger.Printf("checked %d overdue assignments, marked %d as missed", res.Checked, res.Missed)
	return nil
}
