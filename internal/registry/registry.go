/*-------------------------------------------------------------------------
 *
 * registry.go
 *    Generation lifecycle and the active operation table
 *
 * Each verb's artifact moves absent -> generating -> ready. Concurrent
 * regeneration requests for the same artifact collapse into one writer;
 * artifacts of different verbs are published concurrently. Activation
 * swaps the operation table atomically and notifies activators.
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronDynamic/internal/registry/registry.go
 *
 *-------------------------------------------------------------------------
 */

package registry

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/neurondb/NeuronDynamic/internal/generator"
	"github.com/neurondb/NeuronDynamic/internal/logging"
	"github.com/neurondb/NeuronDynamic/internal/metrics"
	"github.com/neurondb/NeuronDynamic/internal/schema"
)

/* State is an artifact's lifecycle state */
type State string

const (
	StateAbsent     State = "absent"
	StateGenerating State = "generating"
	StateReady      State = "ready"
)

/* Activator receives the operation set whenever it is replaced */
type Activator interface {
	Activate(descriptors []*generator.OperationDescriptor)
}

/* Options controls one regeneration pass */
type Options struct {
	Generation generator.Options
	/* Overwrite regenerates artifacts that are already ready */
	Overwrite bool
}

/* Report summarizes a regeneration pass */
type Report struct {
	Published   []generator.Kind
	Reused      []generator.Kind
	Failures    []generator.Failure
	Descriptors []*generator.OperationDescriptor
}

type snapshot struct {
	ordered []*generator.OperationDescriptor
	byName  map[string]*generator.OperationDescriptor
}

/* Registry owns artifacts and the active operations */
type Registry struct {
	store   *Store
	source  schema.Source
	gen     *generator.Generator
	logger  *logging.Logger
	metrics *metrics.Metrics

	flight singleflight.Group

	mu         sync.Mutex
	states     map[generator.Kind]State
	activators []Activator

	active atomic.Pointer[snapshot]
}

/* New creates a registry; a nil store disables persistence */
func New(store *Store, source schema.Source, gen *generator.Generator, logger *logging.Logger, m *metrics.Metrics) *Registry {
	if logger == nil {
		logger = logging.Nop()
	}
	if gen == nil {
		gen = generator.NewGenerator(logger)
	}
	r := &Registry{
		store:   store,
		source:  source,
		gen:     gen,
		logger:  logger,
		metrics: m,
		states:  make(map[generator.Kind]State),
	}
	r.active.Store(&snapshot{byName: map[string]*generator.OperationDescriptor{}})
	return r
}

/* AddActivator registers a receiver for activated operation sets */
func (r *Registry) AddActivator(a Activator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activators = append(r.activators, a)
}

/* State returns the lifecycle state of a verb's artifact */
func (r *Registry) State(verb generator.Kind) State {
	r.mu.Lock()
	st, ok := r.states[verb]
	r.mu.Unlock()
	if ok && st == StateGenerating {
		return st
	}
	if r.store != nil {
		if r.store.Exists(verb) {
			return StateReady
		}
		return StateAbsent
	}
	if ok {
		return st
	}
	return StateAbsent
}

func (r *Registry) setState(verb generator.Kind, st State) {
	r.mu.Lock()
	r.states[verb] = st
	r.mu.Unlock()
}

/* Verbs returns the verbs generated under the given options */
func Verbs(readOnly bool) []generator.Kind {
	if readOnly {
		return []generator.Kind{generator.KindSelect, generator.KindSelectJoined}
	}
	return generator.Kinds
}

/*
 * Regenerate brings every artifact to ready and activates the result.
 * Ready artifacts are reused unless opts.Overwrite is set; when all are
 * ready the schema is not even read. An introspection failure aborts the
 * whole pass.
 */
func (r *Registry) Regenerate(ctx context.Context, opts Options) (*Report, error) {
	verbs := Verbs(opts.Generation.ReadOnly)
	report := &Report{}

	var need []generator.Kind
	for _, v := range verbs {
		if !opts.Overwrite && r.State(v) == StateReady && r.store != nil {
			report.Reused = append(report.Reused, v)
			continue
		}
		need = append(need, v)
	}

	byVerb := make(map[generator.Kind][]*generator.OperationDescriptor)
	failures := make(map[generator.Kind][]string)
	var model *schema.Model
	if len(need) > 0 {
		if r.source == nil {
			return nil, fmt.Errorf("no schema source configured")
		}
		var err error
		if model, err = r.source.Load(ctx); err != nil {
			return nil, fmt.Errorf("regeneration aborted: %w", err)
		}
		result := r.gen.Generate(model, opts.Generation)
		for _, d := range result.Descriptors {
			byVerb[d.Kind] = append(byVerb[d.Kind], d)
		}
		for _, f := range result.Failures {
			failures[f.Kind] = append(failures[f.Kind], f.Error())
		}
		report.Failures = result.Failures
	}

	artifacts := make(map[generator.Kind]*Artifact, len(verbs))
	var artifactsMu sync.Mutex
	keep := func(a *Artifact) {
		artifactsMu.Lock()
		artifacts[a.Verb] = a
		artifactsMu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, v := range need {
		verb := v
		artifact := &Artifact{
			Version:     ArtifactVersion,
			Verb:        verb,
			Descriptors: byVerb[verb],
			Failures:    failures[verb],
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			/* an overlapping caller shares the artifact that actually reached disk */
			v, err, _ := r.flight.Do(string(verb), func() (interface{}, error) {
				if err := r.publish(artifact); err != nil {
					return nil, err
				}
				return artifact, nil
			})
			if err != nil {
				return err
			}
			published := v.(*Artifact)
			keep(published)
			r.metrics.RecordGeneration(string(verb), len(published.Descriptors), len(published.Failures))
			r.metrics.RecordArtifact(string(verb), "published")
			return nil
		})
	}
	for _, v := range report.Reused {
		verb := v
		g.Go(func() error {
			a, err := r.store.Load(verb)
			if err != nil {
				return err
			}
			keep(a)
			r.metrics.RecordArtifact(string(verb), "reused")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if model != nil && r.store != nil {
		if err := r.store.PublishSchema(schema.RenderDDL(model)); err != nil {
			return nil, err
		}
	}

	for _, v := range verbs {
		if a, ok := artifacts[v]; ok {
			report.Descriptors = append(report.Descriptors, a.Descriptors...)
		}
	}
	report.Published = need
	r.Activate(report.Descriptors)

	r.logger.Info("Regeneration complete", map[string]interface{}{
		"published":   len(report.Published),
		"reused":      len(report.Reused),
		"operations":  len(report.Descriptors),
		"failures":    len(report.Failures),
		"persistence": r.store != nil,
	})
	return report, nil
}

func (r *Registry) publish(a *Artifact) error {
	r.setState(a.Verb, StateGenerating)
	if r.store != nil {
		if err := r.store.Publish(a); err != nil {
			r.mu.Lock()
			delete(r.states, a.Verb)
			r.mu.Unlock()
			r.logger.Error("Artifact publication failed", err, map[string]interface{}{"verb": string(a.Verb)})
			return err
		}
	}
	r.setState(a.Verb, StateReady)
	r.logger.Debug("Artifact published", map[string]interface{}{
		"verb":        string(a.Verb),
		"descriptors": len(a.Descriptors),
	})
	return nil
}

/* Activate replaces the active operation set */
func (r *Registry) Activate(descriptors []*generator.OperationDescriptor) {
	snap := &snapshot{
		ordered: descriptors,
		byName:  make(map[string]*generator.OperationDescriptor, len(descriptors)),
	}
	for _, d := range descriptors {
		snap.byName[d.Name] = d
	}
	r.active.Store(snap)
	r.metrics.SetActiveOperations(len(descriptors))

	r.mu.Lock()
	activators := append([]Activator(nil), r.activators...)
	r.mu.Unlock()
	for _, a := range activators {
		a.Activate(descriptors)
	}
}

/* Lookup returns an active operation by name */
func (r *Registry) Lookup(name string) (*generator.OperationDescriptor, bool) {
	d, ok := r.active.Load().byName[name]
	return d, ok
}

/* Descriptors returns the active operations in activation order */
func (r *Registry) Descriptors() []*generator.OperationDescriptor {
	return r.active.Load().ordered
}
