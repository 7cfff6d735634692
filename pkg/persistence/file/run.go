package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/dukex/lakeflow/pkg/models"
	"github.com/dukex/lakeflow/pkg/persistence"
)

func (fp *Persistence) runPath(id string) string {
	return filepath.Join(fp.root, "runs", id+".json")
}

func (fp *Persistence) SaveRun(_ context.Context, run *models.Run) error {
	if run == nil || run.ID == "" {
		return persistence.ErrInvalidRun
	}

	err := checkName(run.ID)
	if err != nil {
		return persistence.NewRunError("SaveRun", run.ID, fmt.Errorf("%w: %w", persistence.ErrInvalidRun, err))
	}

	err = writeJSON(fp.runPath(run.ID), run)
	if err != nil {
		return persistence.NewRunError("SaveRun", run.ID, err)
	}

	return nil
}

func (fp *Persistence) RunByID(_ context.Context, id string) (*models.Run, error) {
	if checkName(id) != nil {
		return nil, persistence.NewRunError("RunByID", id, persistence.ErrRunNotFound)
	}

	body, err := os.ReadFile(fp.runPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewRunError("RunByID", id, persistence.ErrRunNotFound)
		}

		return nil, persistence.NewRunError("RunByID", id, err)
	}

	var run models.Run

	err = json.Unmarshal(body, &run)
	if err != nil {
		return nil, persistence.NewRunError("RunByID", id, fmt.Errorf("failed to unmarshal run: %w", err))
	}

	return &run, nil
}

// Runs returns every run, newest first.
func (fp *Persistence) Runs(_ context.Context) ([]*models.Run, error) {
	runs := []*models.Run{}

	err := readDir(filepath.Join(fp.root, "runs"), func(data []byte) error {
		var run models.Run

		err := json.Unmarshal(data, &run)
		if err != nil {
			return err
		}

		runs = append(runs, &run)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].ID < runs[j].ID
		}

		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})

	return runs, nil
}
