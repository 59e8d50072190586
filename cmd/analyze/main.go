// Command analyze prints a quick, human-readable report about a user
// directory: how many users it holds, a leaderboard by score, and records
// that accept any password.
//
// Usage:
//
//	analyze [file] [dir]             # JSON files, default ./users
//	analyze redis <addr> [prefix]    # Redis hashes
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/wricardo/gobang-online/directory"
)

// leaderboardSize is how many users the report ranks.
const leaderboardSize = 10

// Lister is the part of a directory the report reads.
type Lister interface {
	List(ctx context.Context) ([]directory.Record, error)
}

// Report is the outcome of analyzing a directory.
type Report struct {
	Users       int
	TotalScore  int
	ZeroScore   int
	Leaderboard []directory.Record
	NoPassword  []string
}

func main() {
	ctx := context.Background()

	store, err := openStore(os.Args[1:])
	if err != nil {
		fmt.Printf("Error opening directory: %v\n", err)
		os.Exit(1)
	}

	report, err := analyze(ctx, store)
	if err != nil {
		fmt.Printf("Error reading directory: %v\n", err)
		os.Exit(1)
	}
	printReport(os.Stdout, report)
}

func openStore(args []string) (Lister, error) {
	if len(args) > 0 && args[0] == "redis" {
		if len(args) < 2 {
			return nil, fmt.Errorf("usage: analyze redis <addr> [prefix]")
		}
		prefix := ""
		if len(args) > 2 {
			prefix = args[2]
		}
		client := redis.NewClient(&redis.Options{Addr: args[1]})
		return directory.NewRedis(client, prefix), nil
	}

	dir := "users"
	if len(args) > 0 && args[0] == "file" {
		args = args[1:]
	}
	if len(args) > 0 {
		dir = args[0]
	}
	return directory.NewFile(dir)
}

// analyze reads every record of store. List never returns passwords, so
// password-less records are detected through Authenticate when the store
// supports it.
func analyze(ctx context.Context, store Lister) (*Report, error) {
	records, err := store.List(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{Users: len(records)}
	for _, rec := range records {
		report.TotalScore += rec.Score
		if rec.Score == 0 {
			report.ZeroScore++
		}
	}

	ranked := make([]directory.Record, len(records))
	copy(ranked, records)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	if len(ranked) > leaderboardSize {
		ranked = ranked[:leaderboardSize]
	}
	report.Leaderboard = ranked

	if auth, ok := store.(directory.Authenticator); ok {
		for _, rec := range records {
			// Two different guesses both succeeding means no password is set.
			_, errA := auth.Authenticate(ctx, rec.Username, "\x00a")
			_, errB := auth.Authenticate(ctx, rec.Username, "\x00b")
			if errA == nil && errB == nil {
				report.NoPassword = append(report.NoPassword, rec.Username)
			}
		}
	}

	return report, nil
}

func printReport(w io.Writer, r *Report) {
	fmt.Fprintf(w, "Users: %d\n", r.Users)
	fmt.Fprintf(w, "Total Score: %d\n", r.TotalScore)
	fmt.Fprintf(w, "Users without a win: %d\n", r.ZeroScore)

	if len(r.Leaderboard) > 0 {
		fmt.Fprintf(w, "\n=== Leaderboard ===\n")
		for i, rec := range r.Leaderboard {
			fmt.Fprintf(w, "%2d. %-32s %d\n", i+1, rec.Username, rec.Score)
		}
	}

	if len(r.NoPassword) > 0 {
		fmt.Fprintf(w, "\n⚠️  WARNING: %d users accept any password!\n", len(r.NoPassword))
		for i, name := range r.NoPassword {
			if i < 5 { // Show first 5 users
				fmt.Fprintf(w, "   No password: %s\n", name)
			}
		}
		if len(r.NoPassword) > 5 {
			fmt.Fprintf(w, "   ... and %d more\n", len(r.NoPassword)-5)
		}
	} else {
		fmt.Fprintf(w, "\n✅ Every user has a password\n")
	}
}
