package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ignite/mailchimp-clickmap/internal/clickmap"
	"github.com/ignite/mailchimp-clickmap/internal/config"
	"github.com/ignite/mailchimp-clickmap/internal/mailchimp"
	"github.com/ignite/mailchimp-clickmap/internal/storage"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	nameFilter := flag.String("filter", "", "only campaigns whose title contains this substring")
	days := flag.Int("days", 0, "campaign lookback window in days (0 = config default)")
	output := flag.String("output", "", "CSV output path (default from config)")
	s3Bucket := flag.String("s3-bucket", "", "upload the CSV to this S3 bucket after writing")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Mailchimp.Validate(); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	if *nameFilter == "" {
		*nameFilter = cfg.Pipeline.NameFilter
	}
	if *days <= 0 {
		*days = cfg.Pipeline.LookbackDays
	}
	if *output == "" {
		*output = cfg.Pipeline.OutputPath
	}
	if *s3Bucket != "" {
		cfg.Export.S3Bucket = *s3Bucket
	}

	client := mailchimp.NewClient(cfg.Mailchimp)
	builder := clickmap.NewBuilder(clickmap.NewFilter(cfg.LinkFilter.Domains()))
	pipeline := clickmap.NewPipeline(client, builder, nil)

	ctx := context.Background()

	fmt.Println("=========================================================")
	fmt.Println(" Click Map Builder")
	fmt.Println("=========================================================")
	fmt.Printf("Name filter:   %q\n", *nameFilter)
	fmt.Printf("Lookback:      %d days\n", *days)
	fmt.Printf("Output:        %s\n", *output)
	fmt.Println("---------------------------------------------------------")

	result, err := pipeline.Run(ctx, clickmap.RunOptions{
		Lookback:   time.Duration(*days) * 24 * time.Hour,
		NameFilter: *nameFilter,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: run failed: %v\n", err)
		os.Exit(1)
	}

	if err := storage.WriteCSVFile(*output, result.Records); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: writing CSV: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Campaigns listed:     %d\n", result.CampaignsListed)
	fmt.Printf("Campaigns processed:  %d\n", result.CampaignsProcessed)
	fmt.Printf("Campaigns skipped:    %d\n", result.CampaignsSkipped)
	fmt.Printf("Records written:      %d\n", len(result.Records))
	fmt.Printf("CSV written to:       %s\n", *output)

	if cfg.Export.S3Bucket != "" {
		location, err := uploadToS3(ctx, cfg.Export, *output, result)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: S3 upload: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Uploaded to:          %s\n", location)
	}

	fmt.Println("=========================================================")
}

func uploadToS3(ctx context.Context, cfg config.ExportConfig, csvPath string, result *clickmap.RunResult) (string, error) {
	exporter, err := storage.NewS3Exporter(ctx, cfg)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(csvPath)
	if err != nil {
		return "", err
	}

	key := exporter.ExportKey(result.RunID, result.CompletedAt)
	return exporter.UploadCSV(ctx, key, data)
}
