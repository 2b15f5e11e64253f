// Package migrations embeds the BigQuery DDL for the usage counter table.
// Files use {{PROJECT_ID}} and {{DATASET_ID}} placeholders.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
