// Package cmd provides CLI commands for the stainfetch binary.
package cmd

import "github.com/urfave/cli/v2"

// Shared flags.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// ConfigFlag points at a stainfetch.yaml file whose values act as
	// flag defaults.
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to stainfetch.yaml config file",
	}
)

// inputFlags select and shape the sample catalog.
func inputFlags() []cli.Flag {
	return []cli.Flag{
		ConfigFlag,
		&cli.StringFlag{
			Name:  "samples",
			Usage: "CSV file of IF images (filename,if_plate_id,position,sample,status,locations,antibody,ensembl_ids,gene_names)",
		},
		&cli.StringFlag{
			Name: "cm4ai-table",
			Usage: "CM4AI manifest next to red/ blue/ green/ yellow/ image directories " +
				"(legacy TSV or base-name list)",
		},
		&cli.StringFlag{
			Name: "unique",
			Usage: "Antibody catalog CSV; joined against --protein-list and the " +
				"--atlas-dump to derive samples when no samples file exists",
		},
		&cli.StringFlag{
			Name:  "protein-list",
			Usage: "File with one protein name per line; keeps only matching samples",
		},
		&cli.StringFlag{
			Name:  "base-url",
			Usage: "Base image URL (https://..., or s3://bucket/prefix for object storage)",
		},
		&cli.StringFlag{
			Name:  "local-dir",
			Usage: "Pre-staged archive root with red/ blue/ green/ yellow/ subdirectories",
		},
		&cli.StringFlag{
			Name:  "image-suffix",
			Usage: "Suffix appended to generated image file names",
		},
		&cli.StringFlag{
			Name: "atlas-dump",
			Usage: "proteinatlas.xml[.gz] path or URL; supplies tiles for --unique " +
				"and alternate URLs for images missing from the standard path",
		},
	}
}
