package models

import (
	"github.com/gomlx/gomlx/ml/context/checkpoints"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// DefaultCheckpointsToKeep is the number of checkpoints kept in a directory when none is given.
const DefaultCheckpointsToKeep = 10

// AttachCheckpoint associates the model with the checkpoint directory dir, created if it doesn't exist.
// If dir already holds a checkpoint, its variables are loaded immediately: it must have been saved by a
// model with the same architecture and configuration.
//
// Save writes the model variables to dir, and only the last keep checkpoints are kept. If keep <= 0 it uses
// DefaultCheckpointsToKeep.
func (m *Model) AttachCheckpoint(dir string, keep int) error {
	if keep <= 0 {
		keep = DefaultCheckpointsToKeep
	}
	m.muExec.Lock()
	defer m.muExec.Unlock()
	checkpoint, err := checkpoints.
		Build(m.ctx).
		Dir(dir).
		Immediate().
		Keep(keep).
		Done()
	if err != nil {
		return errors.WithMessagef(err, "failed to build checkpoint for model %s in path %s", m.arch, dir)
	}
	m.checkpoint = checkpoint
	m.exec = nil
	return nil
}

// CheckpointDir returns the checkpoint directory attached to the model, or "" if there is none.
func (m *Model) CheckpointDir() string {
	m.muExec.Lock()
	defer m.muExec.Unlock()
	if m.checkpoint == nil {
		return ""
	}
	return m.checkpoint.Dir()
}

// Save writes the model variables to the attached checkpoint directory. Without one it is a no-op.
func (m *Model) Save() error {
	m.muExec.Lock()
	defer m.muExec.Unlock()
	if m.checkpoint == nil {
		klog.Warningf("Model %s is not associated to a checkpoint directory, not saving", m.arch)
		return nil
	}
	if err := m.checkpoint.Save(); err != nil {
		return errors.WithMessagef(err, "failed to save model %s to %s", m.arch, m.checkpoint.Dir())
	}
	return nil
}
