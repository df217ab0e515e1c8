package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/peterh/liner"

	"opal/internal/common"
	"opal/internal/scan"
	"opal/internal/store"
)

const replHelp = `commands:
  put <table> <id> <col>=<val> ...   write a data row (values: int, float, bool, string)
  mark <table> <id> <ts>             write a timestamp-only marker row
  scan <table> <id> ... [-b n] [-c col,col]
                                     scan ids through the batched iterator
  tenant <id>                        switch tenant (default 0)
  fail soft|hard                     arm a one-shot store failure for the next fetch
  verbose on|off                     toggle fetch logging
  help                               show this text
  exit                               leave`

type session struct {
	mem    *store.MemStore
	tenant int
}

func runREPL() error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	s := &session{mem: store.NewMemStore()}

	fmt.Println("opal - batched record fetcher")
	fmt.Println(replHelp)

	for {
		input, err := line.Prompt("> ")
		if err != nil {
			// Ctrl-C / Ctrl-D both end the session.
			fmt.Println()
			return nil
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if done, err := s.dispatch(input); err != nil {
			fmt.Printf("error: %v\n", err)
		} else if done {
			return nil
		}
	}
}

func (s *session) dispatch(input string) (done bool, err error) {
	parts := strings.Fields(input)
	switch parts[0] {
	case "exit", "quit":
		return true, nil
	case "help":
		fmt.Println(replHelp)
	case "tenant":
		if len(parts) != 2 {
			return false, errors.New("usage: tenant <id>")
		}
		id, err := strconv.Atoi(parts[1])
		if err != nil {
			return false, fmt.Errorf("bad tenant id %q", parts[1])
		}
		s.tenant = id
		fmt.Printf("tenant is now %d\n", id)
	case "verbose":
		if len(parts) != 2 || (parts[1] != "on" && parts[1] != "off") {
			return false, errors.New("usage: verbose on|off")
		}
		setVerbose(parts[1] == "on")
	case "put":
		return false, s.put(parts[1:])
	case "mark":
		return false, s.mark(parts[1:])
	case "scan":
		return false, s.scan(parts[1:])
	case "fail":
		if len(parts) != 2 {
			return false, errors.New("usage: fail soft|hard")
		}
		switch parts[1] {
		case "soft":
			s.mem.FailNextBatch(store.ErrRetriesExhausted)
			fmt.Println("next fetch will report retries exhausted")
		case "hard":
			s.mem.FailNextBatch(errors.New("injected store failure"))
			fmt.Println("next fetch will fail fatally")
		default:
			return false, errors.New("usage: fail soft|hard")
		}
	default:
		return false, fmt.Errorf("unknown command %q (try help)", parts[0])
	}
	return false, nil
}

func (s *session) put(args []string) error {
	if len(args) < 3 {
		return errors.New("usage: put <table> <id> <col>=<val> ...")
	}
	table, id := args[0], args[1]

	values := make(map[string]any)
	for _, pair := range args[2:] {
		col, raw, ok := strings.Cut(pair, "=")
		if !ok || col == "" {
			return fmt.Errorf("bad column assignment %q", pair)
		}
		values[col] = parseValue(raw)
	}
	ts := nextTimestamp()

	physical := store.TableName(s.tenant, table)
	if err := s.mem.PutRow(physical, id, values, ts); err != nil {
		return err
	}
	fmt.Printf("put %s/%s ts=%d (%d columns)\n", table, id, ts, len(values))
	return nil
}

func (s *session) mark(args []string) error {
	if len(args) != 3 {
		return errors.New("usage: mark <table> <id> <ts>")
	}
	ts, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil {
		return fmt.Errorf("bad timestamp %q", args[2])
	}
	s.mem.PutTimestamp(store.TableName(s.tenant, args[0]), args[1], ts)
	fmt.Printf("marked %s/%s ts=%d\n", args[0], args[1], ts)
	return nil
}

func (s *session) scan(args []string) error {
	if len(args) < 2 {
		return errors.New("usage: scan <table> <id> ... [-b n] [-c col,col]")
	}
	table := args[0]

	batchSize := 0
	var columns []string
	var ids []string
	rest := args[1:]
	for i := 0; i < len(rest); i++ {
		switch rest[i] {
		case "-b":
			if i+1 >= len(rest) {
				return errors.New("-b needs a batch size")
			}
			n, err := strconv.Atoi(rest[i+1])
			if err != nil {
				return fmt.Errorf("bad batch size %q", rest[i+1])
			}
			batchSize = n
			i++
		case "-c":
			if i+1 >= len(rest) {
				return errors.New("-c needs a column list")
			}
			columns = strings.Split(rest[i+1], ",")
			i++
		default:
			ids = append(ids, rest[i])
		}
	}
	if len(ids) == 0 {
		return errors.New("scan needs at least one id")
	}

	var opts []scan.Option
	if batchSize > 0 {
		opts = append(opts, scan.WithBatchSize(batchSize))
	}
	if len(columns) > 0 {
		opts = append(opts, scan.WithColumns(columns...))
	}

	iter, err := scan.New(s.mem, s.tenant, table, ids, opts...)
	if err != nil {
		return err
	}
	defer iter.Close()

	count := 0
	for iter.HasNext() {
		rec, err := iter.Next()
		if err != nil {
			return err
		}
		fmt.Printf("%-12s ts=%-10d %v\n", rec.ID, rec.Timestamp, rec.Values)
		iter.Ack()
		count++
	}
	if err := iter.Err(); err != nil {
		return err
	}
	fmt.Printf("%d records for %d ids\n", count, len(ids))
	return nil
}

func setVerbose(on bool) {
	common.LoggingEnabled = on
	if on {
		fmt.Println("fetch logging on")
	} else {
		fmt.Println("fetch logging off")
	}
}

// nextTimestamp versions REPL writes with wall-clock milliseconds.
func nextTimestamp() int64 {
	return time.Now().UnixMilli()
}

// parseValue narrows a literal to the richest type it parses as.
func parseValue(raw string) any {
	if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return v
	}
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		return v
	}
	if v, err := strconv.ParseBool(raw); err == nil {
		return v
	}
	return raw
}
