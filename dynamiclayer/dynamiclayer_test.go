package dynamiclayer

import (
	"context"
	"testing"

	"github.com/paulmach/orb"
	"github.com/skanjila/neo4j-spatial/geo"
	"github.com/skanjila/neo4j-spatial/internal/graph"
	"github.com/skanjila/neo4j-spatial/internal/rtree"
	pkgerrors "github.com/skanjila/neo4j-spatial/pkg/errors"
	"github.com/skanjila/neo4j-spatial/pkg/utils"
)

type osmEncoder struct {
	geoms map[graph.VertexID]geo.Geometry
}

func newOSMEncoder() *osmEncoder { return &osmEncoder{geoms: make(map[graph.VertexID]geo.Geometry)} }

func (e *osmEncoder) DecodeEnvelope(ctx context.Context, ref geo.GeometryRef) (geo.Envelope, error) {
	g := e.geoms[ref.(graph.VertexID)]
	return geo.EnvelopeOf(g.Bound()), nil
}

func (e *osmEncoder) DecodeGeometry(ctx context.Context, ref geo.GeometryRef) (geo.Geometry, error) {
	return e.geoms[ref.(graph.VertexID)], nil
}

func (e *osmEncoder) EncodeGeometry(ctx context.Context, g geo.Geometry, target geo.GeometryRef) error {
	e.geoms[target.(graph.VertexID)] = g
	return nil
}

type osmFixture struct {
	store *graph.MemoryStore
	enc   *osmEncoder
	ix    *rtree.Index
	layer graph.VertexID
}

// way adds a geometry vertex with OSM-like properties set both as host
// graph vertex properties (for the structural dialect) and as decoded
// feature properties (for the CQL dialect).
func (f *osmFixture) way(t *testing.T, txn graph.Txn, shape orb.Geometry, props map[string]any) graph.VertexID {
	t.Helper()
	ctx := context.Background()
	v, err := txn.CreateVertex(ctx)
	if err != nil {
		t.Fatalf("CreateVertex: %v", err)
	}
	for k, val := range props {
		if err := txn.SetProp(ctx, v, k, val); err != nil {
			t.Fatalf("SetProp: %v", err)
		}
	}
	f.enc.geoms[v] = geo.Geometry{Coords: shape, Properties: props}
	if err := f.ix.Add(ctx, txn, f.enc, v); err != nil {
		t.Fatalf("Add: %v", err)
	}
	return v
}

func newOSMFixture(t *testing.T) *osmFixture {
	t.Helper()
	ctx := context.Background()
	store := graph.NewMemoryStore()
	enc := newOSMEncoder()

	txn, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	layer, err := txn.CreateVertex(ctx)
	if err != nil {
		t.Fatalf("CreateVertex: %v", err)
	}
	ix := rtree.NewIndex(store, layer, &utils.NullLogger{})
	if err := ix.Init(ctx, txn, 8, 2); err != nil {
		t.Fatalf("Init: %v", err)
	}
	txn.Success()
	if err := txn.Finish(ctx); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	return &osmFixture{store: store, enc: enc, ix: ix, layer: layer}
}

func (f *osmFixture) withTxn(t *testing.T, fn func(txn graph.Txn) error) {
	t.Helper()
	ctx := context.Background()
	txn, err := f.store.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := fn(txn); err != nil {
		_ = txn.Finish(ctx)
		t.Fatalf("operation failed: %v", err)
	}
	txn.Success()
	if err := txn.Finish(ctx); err != nil {
		t.Fatalf("Finish: %v", err)
	}
}

func TestStructuralPredicate_CountMatchesPropertyFilter(t *testing.T) {
	f := newOSMFixture(t)
	var residential, other int

	f.withTxn(t, func(txn graph.Txn) error {
		f.way(t, txn, orb.Point{0, 0}, map[string]any{"highway": "residential"})
		f.way(t, txn, orb.Point{1, 1}, map[string]any{"highway": "residential"})
		f.way(t, txn, orb.Point{2, 2}, map[string]any{"highway": "primary"})
		return nil
	})

	pred, err := Parse(`{"properties":{"highway":"residential"}}`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	dyn := New("residential-roads", f.ix, pred)

	f.withTxn(t, func(txn graph.Txn) error {
		n, err := dyn.Count(context.Background(), txn, f.enc)
		residential = n
		return err
	})
	f.withTxn(t, func(txn graph.Txn) error {
		n, err := f.ix.Count(context.Background(), txn)
		other = n
		return err
	})

	if residential != 2 {
		t.Errorf("dynamic layer count = %d, want 2", residential)
	}
	if other != 3 {
		t.Errorf("base layer count = %d, want 3 (unchanged by the dynamic view)", other)
	}
}

func TestStructuralPredicate_MissingPropertyIsFalse(t *testing.T) {
	f := newOSMFixture(t)
	f.withTxn(t, func(txn graph.Txn) error {
		f.way(t, txn, orb.Point{0, 0}, map[string]any{"waterway": "river"})
		return nil
	})

	pred, err := Parse(`{"properties":{"highway":"residential"}}`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	dyn := New("roads", f.ix, pred)

	var n int
	f.withTxn(t, func(txn graph.Txn) error {
		var err error
		n, err = dyn.Count(context.Background(), txn, f.enc)
		return err
	})
	if n != 0 {
		t.Errorf("count = %d, want 0 when the filtered property is absent", n)
	}
}

func TestCQLPredicate_NumericAndStringComparisons(t *testing.T) {
	f := newOSMFixture(t)
	f.withTxn(t, func(txn graph.Txn) error {
		f.way(t, txn, orb.Point{0, 0}, map[string]any{"highway": "residential", "lanes": float64(2)})
		f.way(t, txn, orb.Point{1, 1}, map[string]any{"highway": "residential", "lanes": float64(1)})
		f.way(t, txn, orb.Point{2, 2}, map[string]any{"highway": "primary", "lanes": float64(4)})
		return nil
	})

	pred, err := Parse(`highway = 'residential' AND lanes >= 2`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	dyn := New("wide-residential", f.ix, pred)

	var n int
	f.withTxn(t, func(txn graph.Txn) error {
		var err error
		n, err = dyn.Count(context.Background(), txn, f.enc)
		return err
	})
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}

func TestLayer_WritesAreReadOnlyView(t *testing.T) {
	f := newOSMFixture(t)
	pred, err := Parse("")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	dyn := New("everything", f.ix, pred)

	f.withTxn(t, func(txn graph.Txn) error {
		v, err := txn.CreateVertex(context.Background())
		if err != nil {
			return err
		}
		err = dyn.Add(context.Background(), txn, f.enc, v)
		if !pkgerrors.Is(err, pkgerrors.KindReadOnlyView) {
			t.Errorf("Add() error = %v, want ReadOnlyView", err)
		}
		return nil
	})
}

func TestLayerConfig_PersistAndReopen(t *testing.T) {
	f := newOSMFixture(t)
	var cfg graph.VertexID

	f.withTxn(t, func(txn graph.Txn) error {
		f.way(t, txn, orb.Point{0, 0}, map[string]any{"highway": "residential"})
		var err error
		cfg, err = CreateLayerConfig(context.Background(), txn, f.layer, "residential-roads", `{"properties":{"highway":"residential"}}`)
		return err
	})

	var n int
	f.withTxn(t, func(txn graph.Txn) error {
		dyn, err := Open(context.Background(), txn, f.ix, cfg)
		if err != nil {
			return err
		}
		if dyn.Name != "residential-roads" {
			t.Errorf("Name = %q, want %q", dyn.Name, "residential-roads")
		}
		n, err = dyn.Count(context.Background(), txn, f.enc)
		return err
	})
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}
