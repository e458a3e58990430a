package queries

import (
	"context"
	"log"

	"cureports/internal/queryapi"
)

// Manager is the part of the query API used to install definitions.
type Manager interface {
	Create(ctx context.Context, name, query string) (*queryapi.Entry, error)
	Delete(ctx context.Context, name string) (string, error)
}

// InstallSummary counts the outcome of an Install run.
type InstallSummary struct {
	Created []string
	Failed  []string
}

// Install creates each definition, deleting an existing query of the same name first
// when overwrite is set. A failing definition is logged and skipped.
func Install(ctx context.Context, api Manager, defs []Definition, overwrite bool, logger *log.Logger) (InstallSummary, error) {
	var summary InstallSummary
	for _, def := range defs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		if overwrite {
			if id, err := api.Delete(ctx, def.Name); err != nil {
				logger.Printf("WARN cannot delete query %s before overwrite: %v", def.Name, err)
			} else {
				logger.Printf("INFO query %s with id %s was deleted", def.Name, id)
			}
		}

		entry, err := api.Create(ctx, def.Name, def.Query)
		if err != nil {
			logger.Printf("ERROR cannot create query %s: %v", def.Name, err)
			summary.Failed = append(summary.Failed, def.Name)
			continue
		}
		logger.Printf("INFO created query %s, please validate it at %s", def.Name, entry.ReviewURL())
		summary.Created = append(summary.Created, def.Name)
	}
	return summary, nil
}
