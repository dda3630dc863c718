package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/borgdesk/internal/borg"
	"github.com/edvin/borgdesk/internal/config"
	"github.com/edvin/borgdesk/internal/core"
	"github.com/edvin/borgdesk/internal/db"
	"github.com/edvin/borgdesk/internal/logging"
	"github.com/edvin/borgdesk/internal/model"
	"github.com/edvin/borgdesk/internal/mount"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "list":
		cmdList()
	case "list-orphaned":
		cmdListOrphaned(os.Args[2:])
	case "cleanup":
		cmdCleanup(os.Args[2:])
	case "system-list":
		cmdSystemList()
	case "force-unmount-all":
		cmdForceUnmountAll(os.Args[2:])
	case "debug-info":
		cmdDebugInfo()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: borgdesk-cli <command> [options]

Commands:
  list                 List active archive mounts
  list-orphaned        List active mounts older than the orphan threshold
  cleanup              Unmount orphaned mounts (--hours N, --force)
  system-list          List borg fuse mounts from the system mount table
  force-unmount-all    Force unmount every borg mount under the base directory
  debug-info           Print mount environment diagnostics`)
}

// newManager wires a mount manager against the configured database.
func newManager() (*mount.Manager, *config.Config, func()) {
	cfg, err := config.Load()
	if err != nil {
		fatal("failed to load config: %v", err)
	}
	if err := cfg.Validate("cli"); err != nil {
		fatal("invalid config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		fatal("failed to connect to database: %v", err)
	}

	logger := logging.NewLogger(cfg).Level(zerolog.WarnLevel)
	services := core.NewServices(pool, cfg.AuthTokenSecret, cfg.AuthTokenIssuer)
	engine := borg.NewClient(cfg.BorgPath, cfg.SubprocessTimeout)
	return mount.NewManager(cfg, engine, services, logger), cfg, pool.Close
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func cmdList() {
	manager, _, closePool := newManager()
	defer closePool()

	mounts, err := manager.ActiveMounts(context.Background())
	if err != nil {
		fatal("%v", err)
	}
	if len(mounts) == 0 {
		fmt.Println("No active mounts.")
		return
	}
	printMounts(mounts)
}

func cmdListOrphaned(args []string) {
	fs := flag.NewFlagSet("list-orphaned", flag.ExitOnError)
	hours := fs.Int("hours", 0, "Age threshold in hours (default: configured max age)")
	fs.Parse(args)

	manager, cfg, closePool := newManager()
	defer closePool()

	maxAge := cfg.MountMaxAge()
	if *hours > 0 {
		maxAge = time.Duration(*hours) * time.Hour
	}

	mounts, err := manager.OrphanedMounts(context.Background(), maxAge)
	if err != nil {
		fatal("%v", err)
	}
	if len(mounts) == 0 {
		fmt.Printf("No mounts older than %s.\n", maxAge)
		return
	}
	printMounts(mounts)
}

func printMounts(mounts []model.Mount) {
	now := time.Now()
	fmt.Printf("%-14s %-30s %-10s %s\n", "ID", "ARCHIVE", "AGE", "PATH")
	for _, m := range mounts {
		fmt.Printf("%-14s %-30s %-10s %s\n",
			shorten(m.ID, 14), shorten(m.ArchiveName, 30),
			m.Age(now).Round(time.Minute), m.MountPath)
	}
}

func shorten(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func cmdCleanup(args []string) {
	fs := flag.NewFlagSet("cleanup", flag.ExitOnError)
	hours := fs.Int("hours", 0, "Age threshold in hours (default: configured max age)")
	force := fs.Bool("force", false, "Skip the confirmation prompt")
	fs.Parse(args)

	manager, cfg, closePool := newManager()
	defer closePool()

	maxAge := cfg.MountMaxAge()
	if *hours > 0 {
		maxAge = time.Duration(*hours) * time.Hour
	}

	ctx := context.Background()
	mounts, err := manager.OrphanedMounts(ctx, maxAge)
	if err != nil {
		fatal("%v", err)
	}
	if len(mounts) == 0 {
		fmt.Printf("No mounts older than %s.\n", maxAge)
		return
	}

	printMounts(mounts)
	if !*force {
		fmt.Printf("Unmount these %d mount(s)? [y/N] ", len(mounts))
		var answer string
		fmt.Scanln(&answer)
		if answer != "y" && answer != "Y" {
			fmt.Println("Aborted.")
			return
		}
	}

	failed := 0
	for _, m := range mounts {
		if err := manager.Unmount(ctx, m.ID); err != nil {
			fmt.Fprintf(os.Stderr, "  failed: %s: %v\n", m.MountPath, err)
			failed++
			continue
		}
		fmt.Printf("  unmounted: %s\n", m.MountPath)
	}
	fmt.Printf("Done: %d unmounted, %d failed.\n", len(mounts)-failed, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

func cmdSystemList() {
	manager, _, closePool := newManager()
	defer closePool()

	mounts, err := manager.BorgMounts()
	if err != nil {
		fatal("%v", err)
	}
	if len(mounts) == 0 {
		fmt.Println("No borg mounts in the system mount table.")
		return
	}
	fmt.Printf("%-20s %-12s %s\n", "DEVICE", "TYPE", "MOUNT POINT")
	for _, m := range mounts {
		fmt.Printf("%-20s %-12s %s\n", m.Device, m.Type, m.MountPoint)
	}
}

func cmdForceUnmountAll(args []string) {
	fs := flag.NewFlagSet("force-unmount-all", flag.ExitOnError)
	force := fs.Bool("force", false, "Skip the confirmation prompt")
	fs.Parse(args)

	manager, cfg, closePool := newManager()
	defer closePool()

	if !*force {
		fmt.Printf("Force unmount everything under %s? [y/N] ", cfg.MountBaseDir)
		var answer string
		fmt.Scanln(&answer)
		if answer != "y" && answer != "Y" {
			fmt.Println("Aborted.")
			return
		}
	}

	results, err := manager.ForceUnmountAll(context.Background())
	if err != nil {
		fatal("%v", err)
	}
	if len(results) == 0 {
		fmt.Println("Nothing to unmount.")
		return
	}

	failed := 0
	for _, res := range results {
		if res.Status == "unmounted" {
			fmt.Printf("  unmounted: %s\n", res.MountPoint)
			continue
		}
		fmt.Fprintf(os.Stderr, "  failed: %s: %s\n", res.MountPoint, res.Error)
		failed++
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func cmdDebugInfo() {
	cfg, err := config.Load()
	if err != nil {
		fatal("failed to load config: %v", err)
	}

	fmt.Println("Configuration:")
	fmt.Printf("  mount base dir:     %s\n", cfg.MountBaseDir)
	fmt.Printf("  cleanup enabled:    %v\n", cfg.MountCleanupEnabled)
	fmt.Printf("  cleanup interval:   %dh\n", cfg.MountCleanupIntervalHours)
	fmt.Printf("  max mount age:      %dh\n", cfg.MountMaxAgeHours)
	fmt.Printf("  auto unmount:       %v\n", cfg.AutoUnmountOrphaned)
	fmt.Printf("  borg binary:        %s\n", cfg.BorgPath)

	fmt.Println("\nMount base directory:")
	if info, err := os.Stat(cfg.MountBaseDir); err != nil {
		fmt.Printf("  %v\n", err)
	} else {
		fmt.Printf("  exists, mode %s\n", info.Mode())
		entries, err := os.ReadDir(cfg.MountBaseDir)
		if err == nil {
			fmt.Printf("  %d entries\n", len(entries))
			for _, e := range entries {
				fmt.Printf("    %s\n", e.Name())
			}
		}
	}

	fmt.Println("\nSystem mount table (fuse):")
	mounts, err := mount.SystemMounts()
	if err != nil {
		fmt.Printf("  %v\n", err)
	} else {
		found := 0
		for _, m := range mounts {
			if m.Type == "fuse" || m.Type == "fuse.borgfs" {
				fmt.Printf("  %s on %s (%s)\n", m.Device, m.MountPoint, m.Type)
				found++
			}
		}
		if found == 0 {
			fmt.Println("  none")
		}
	}

	fmt.Println("\nDatabase:")
	if cfg.DatabaseURL == "" {
		fmt.Println("  DATABASE_URL not set")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		fmt.Printf("  %v\n", err)
		return
	}
	defer pool.Close()
	fmt.Println("  ok")

	var active, orphaned int
	if err := pool.QueryRow(ctx,
		`SELECT count(*) FILTER (WHERE active), count(*) FILTER (WHERE active AND orphaned) FROM mounts`,
	).Scan(&active, &orphaned); err == nil {
		fmt.Printf("  active mounts: %d (orphaned: %d)\n", active, orphaned)
	}
}
