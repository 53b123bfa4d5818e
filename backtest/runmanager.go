package backtest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/uuid"

	"github.com/quantetra/stratsim/common"
	"github.com/quantetra/stratsim/log"
)

var (
	errRunNotFound         = errors.New("run not found")
	errRunAlreadyMonitored = errors.New("run already monitored")
	errRunIsRunning        = errors.New("run is already running")
	errRunHasNotRan        = errors.New("run hasn't ran yet")
)

// RunMetaData records a managed run's lifecycle
type RunMetaData struct {
	ID          string
	Strategy    string
	DateLoaded  time.Time
	DateStarted time.Time
	DateEnded   time.Time
	Closed      bool
	Err         string
}

type managedRun struct {
	metadata RunMetaData
	bt       *Backtesting
	cancel   context.CancelFunc
	done     chan struct{}
}

// RunManager tracks multiple backtest runs under uuid task ids. Parameter
// optimisation drivers parallelise by running many independent engine
// instances; each instance owns its own state, so the manager only guards its
// own bookkeeping
type RunManager struct {
	m    sync.Mutex
	runs []*managedRun
}

// SetupRunManager creates a run manager to oversee multiple strategy runs
func SetupRunManager() *RunManager {
	return &RunManager{}
}

// AddRun registers a configured engine and allocates its task id
func (r *RunManager) AddRun(b *Backtesting) (string, error) {
	if b == nil {
		return "", fmt.Errorf("%w Backtesting", common.ErrNilPointer)
	}
	if b.strategy == nil {
		return "", errNoStrategy
	}
	r.m.Lock()
	defer r.m.Unlock()
	for i := range r.runs {
		if r.runs[i].bt == b {
			return "", fmt.Errorf("%w %v", errRunAlreadyMonitored, r.runs[i].metadata.ID)
		}
	}
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	r.runs = append(r.runs, &managedRun{
		metadata: RunMetaData{
			ID:         id.String(),
			Strategy:   b.strategy.Name(),
			DateLoaded: time.Now(),
		},
		bt: b,
	})
	return id.String(), nil
}

// StartRun drives the referenced backtest from its own task so the host
// application is not blocked. Completion is recorded on the run's metadata
func (r *RunManager) StartRun(ctx context.Context, id string) error {
	r.m.Lock()
	defer r.m.Unlock()
	run, err := r.runByID(id)
	if err != nil {
		return err
	}
	if run.done != nil {
		return fmt.Errorf("%w %v", errRunIsRunning, id)
	}
	runCtx, cancel := context.WithCancel(ctx)
	run.cancel = cancel
	run.done = make(chan struct{})
	run.metadata.DateStarted = time.Now()
	go func(run *managedRun) {
		defer close(run.done)
		err := run.bt.Run(runCtx)
		r.m.Lock()
		defer r.m.Unlock()
		run.metadata.DateEnded = time.Now()
		run.metadata.Closed = true
		if err != nil {
			run.metadata.Err = err.Error()
			log.Errorf(log.Backtest, "run %v %v: %v", run.metadata.ID, run.metadata.Strategy, err)
		}
	}(run)
	return nil
}

// StopRun abandons a running replay between events
func (r *RunManager) StopRun(id string) error {
	r.m.Lock()
	defer r.m.Unlock()
	run, err := r.runByID(id)
	if err != nil {
		return err
	}
	if run.cancel == nil {
		return fmt.Errorf("%w %v", errRunHasNotRan, id)
	}
	run.cancel()
	return nil
}

// WaitForCompletion blocks until the referenced run finishes
func (r *RunManager) WaitForCompletion(id string) error {
	r.m.Lock()
	run, err := r.runByID(id)
	if err != nil {
		r.m.Unlock()
		return err
	}
	done := run.done
	r.m.Unlock()
	if done == nil {
		return fmt.Errorf("%w %v", errRunHasNotRan, id)
	}
	<-done
	return nil
}

// List details every monitored run
func (r *RunManager) List() []RunMetaData {
	r.m.Lock()
	defer r.m.Unlock()
	resp := make([]RunMetaData, len(r.runs))
	for i := range r.runs {
		resp[i] = r.runs[i].metadata
	}
	return resp
}

func (r *RunManager) runByID(id string) (*managedRun, error) {
	for i := range r.runs {
		if r.runs[i].metadata.ID == id {
			return r.runs[i], nil
		}
	}
	return nil, fmt.Errorf("%w %v", errRunNotFound, id)
}
