package main

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/desertthunder/notedesk/internal/formatter"
	"github.com/desertthunder/notedesk/internal/listsync"
	"github.com/desertthunder/notedesk/internal/screens"
	"github.com/urfave/cli/v3"
)

// List fetches one page of the screen and prints it.
func (r *Runner) List(s screens.Screen) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		format, err := formatter.ParseFormat(cmd.String("format"))
		if err != nil {
			return err
		}

		inst, err := r.open(ctx, s, filterQuery(cmd, s.Fields()), false)
		if err != nil {
			return err
		}
		defer inst.Unmount()

		if err := inst.Mount(ctx); err != nil {
			return err
		}
		if err := inst.Wait(ctx); err != nil {
			return err
		}

		v := inst.View()
		if v.State == listsync.StateErrored {
			return fmt.Errorf("failed to fetch %s: %w", s.Resource(), v.Err)
		}
		r.logger.Debug("fetched", "resource", s.Resource(), "page", v.Page, "total_items", v.TotalItems)

		if path := cmd.String("output"); path != "" {
			if err := formatter.WriteFile(path, format, v); err != nil {
				return err
			}
			return r.writePlain("%s\nSaved to %s\n", formatter.Summary(v), path)
		}
		return formatter.Write(r.output, format, v)
	}
}

// Watch mounts the screen with push invalidation and reprints every settled view until ctx is
// done.
func (r *Runner) Watch(s screens.Screen) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		format, err := formatter.ParseFormat(cmd.String("format"))
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		inst, err := r.open(ctx, s, filterQuery(cmd, s.Fields()), true)
		if err != nil {
			return err
		}
		defer inst.Unmount()

		views := make(chan screens.View, 1)
		unwatch := inst.Watch(func(v screens.View) { latest(views, v) })
		defer unwatch()

		if err := inst.Mount(ctx); err != nil {
			return err
		}

		var printed uint64
		for {
			select {
			case <-ctx.Done():
				return nil
			case v := <-views:
				if v.Loading || v.FetchVersion == printed {
					continue
				}
				printed = v.FetchVersion
				if format == formatter.Text {
					r.writePlain("── %s ──\n", time.Now().Format(time.TimeOnly))
				}
				if err := formatter.Write(r.output, format, v); err != nil {
					return err
				}
			}
		}
	}
}

// latest hands v to the single-slot channel, replacing a view nobody has read yet.
func latest(ch chan screens.View, v screens.View) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// filterQuery collects the filter and pagination flags that were set into a query.
func filterQuery(cmd *cli.Command, fields []listsync.FieldSpec) url.Values {
	q := url.Values{}
	for _, f := range fields {
		if cmd.IsSet(f.Name) {
			q.Set(f.Name, cmd.String(f.Name))
		}
	}
	if cmd.IsSet("page") {
		q.Set(listsync.PageField, strconv.Itoa(int(cmd.Int("page"))))
	}
	if cmd.IsSet("page-size") {
		q.Set(listsync.PageSizeField, strconv.Itoa(int(cmd.Int("page-size"))))
	}
	return q
}
