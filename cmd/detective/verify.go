package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jonathan/claim-detective/internal/config"
	"github.com/jonathan/claim-detective/internal/observability"
	"github.com/jonathan/claim-detective/internal/types"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	verifyFile        string
	verifyConcurrency int
	verifyShowAudit   bool
	verifyJSON        bool
)

var verifyCmd = &cobra.Command{
	Use:   "verify [claim...]",
	Short: "Verify claims locally and print their scores",
	Long: `Run one or more claims through the verification pipeline in process,
using an in-memory store, and print each run with its reliability score.

Claims are taken from the arguments or from --file. A .json file holds an
array of {"claim_text": ..., "source_urls": [...]} objects; any other file
holds one claim per line, with blank lines and lines starting with # skipped.
Clarifications are disabled since nobody is there to answer them.`,
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().StringVarP(&verifyFile, "file", "f", "", "Read claims from a file")
	verifyCmd.Flags().IntVar(&verifyConcurrency, "concurrency", 4, "Maximum claims submitted at once")
	verifyCmd.Flags().BoolVar(&verifyShowAudit, "audit", false, "Print the tail of each claim's audit trail")
	verifyCmd.Flags().BoolVar(&verifyJSON, "json", false, "Print results as JSON")
	rootCmd.AddCommand(verifyCmd)
}

// verifyResult is the outcome of one submitted claim.
type verifyResult struct {
	Claim       *types.Claim            `json:"claim,omitempty"`
	Run         *types.Run              `json:"run,omitempty"`
	Score       *types.ReliabilityScore `json:"score,omitempty"`
	DuplicateOf string                  `json:"duplicate_of,omitempty"`
	Error       string                  `json:"error,omitempty"`
}

func runVerify(cmd *cobra.Command, args []string) error {
	requests, err := collectClaims(args, verifyFile)
	if err != nil {
		return err
	}
	if len(requests) == 0 {
		return fmt.Errorf("no claims given: pass them as arguments or use --file")
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	cfg.Store = config.StoreMemory
	cfg.DisableClarifications = true

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	defer a.Close()

	results := make([]verifyResult, len(requests))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(verifyConcurrency, 1))
	for i, req := range requests {
		g.Go(func() error {
			claim, run, err := a.orch.Submit(gctx, req.ClaimText, req.SourceURLs, "cli")
			mu.Lock()
			defer mu.Unlock()

			var dup *types.DuplicateClaimError
			switch {
			case errors.As(err, &dup):
				results[i].DuplicateOf = dup.ExistingID.String()
			case err != nil:
				if types.ErrorCode(err) == types.CodeInfrastructure {
					return err
				}
				results[i].Error = err.Error()
			default:
				results[i].Claim = claim
				results[i].Run = run
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// Runs execute in the background; wait for all of them before reading results.
	a.orch.Wait()

	for i := range results {
		if results[i].Run == nil {
			continue
		}
		run, err := a.orch.GetRun(ctx, results[i].Run.ID)
		if err != nil {
			return err
		}
		results[i].Run = run
		score, err := a.repo.GetScore(ctx, results[i].Claim.ID)
		if err != nil {
			return fmt.Errorf("failed to read score: %w", err)
		}
		results[i].Score = score
	}

	out := cmd.OutOrStdout()
	if verifyJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	printer := observability.NewPrinter(out)
	for i, r := range results {
		switch {
		case r.DuplicateOf != "":
			_, _ = fmt.Fprintf(out, "Claim %d is a duplicate of %s\n", i+1, r.DuplicateOf)
		case r.Error != "":
			_, _ = fmt.Fprintf(out, "Claim %d rejected: %s\n", i+1, r.Error)
		default:
			printer.PrintRun(r.Claim, r.Run)
			printer.PrintScore(r.Score)
			if verifyShowAudit {
				events, err := a.audit.Query(ctx, r.Claim.ID, types.AuditFilter{})
				if err != nil {
					return err
				}
				printer.PrintAudit(events)
			}
		}
	}
	return nil
}

// collectClaims gathers claims from args and, when set, a claims file.
func collectClaims(args []string, path string) ([]types.CreateClaimRequest, error) {
	var requests []types.CreateClaimRequest
	for _, arg := range args {
		if text := strings.TrimSpace(arg); text != "" {
			requests = append(requests, types.CreateClaimRequest{ClaimText: text})
		}
	}
	if path == "" {
		return requests, nil
	}

	fromFile, err := readClaimsFile(path)
	if err != nil {
		return nil, err
	}
	return append(requests, fromFile...), nil
}

// readClaimsFile parses a JSON array of claim requests or a plain text file
// with one claim per line.
func readClaimsFile(path string) ([]types.CreateClaimRequest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open claims file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if strings.EqualFold(filepath.Ext(path), ".json") {
		var requests []types.CreateClaimRequest
		if err := json.NewDecoder(f).Decode(&requests); err != nil {
			return nil, fmt.Errorf("failed to parse claims JSON: %w", err)
		}
		return requests, nil
	}

	var requests []types.CreateClaimRequest
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		requests = append(requests, types.CreateClaimRequest{ClaimText: line})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read claims file: %w", err)
	}
	return requests, nil
}
