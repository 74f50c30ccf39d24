package main

import (
	"context"
	"fmt"
	"time"

	"github.com/trezcool/mitihani/core/user"
	emailsvc "github.com/trezcool/mitihani/services/email"
)

// grantReferralBonuses runs the monthly referral bonus batch. The cron that
// fires it lives outside this repo; re-running a month grants again.
func (cli *commandLine) grantReferralBonuses(month time.Time) error {
	svc := user.NewService(cli.usrRepo, emailsvc.NewConsoleService())

	granted, err := svc.GrantReferralBonuses(context.Background(), month)
	if err != nil {
		return err
	}
	fmt.Printf("granted %d referral bonus(es) for %s\n", granted, month.Format("2006-01"))
	return nil
}
