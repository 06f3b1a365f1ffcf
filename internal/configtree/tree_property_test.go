package configtree

import (
	"errors"
	"testing"

	"pgregory.net/rapid"
)

func scalarGen() *rapid.Generator[any] {
	return rapid.OneOf(
		rapid.Map(rapid.StringMatching(`[a-z]{0,4}`), func(s string) any { return s }),
		rapid.Map(rapid.Int64Range(-100, 100), func(i int64) any { return i }),
		rapid.Map(rapid.Bool(), func(b bool) any { return b }),
		rapid.Just[any](nil),
	)
}

func valueGen(keys []string, depth int) *rapid.Generator[any] {
	if depth <= 0 {
		return scalarGen()
	}
	return rapid.OneOf(
		scalarGen(),
		rapid.Map(treeGen(keys, depth-1), func(t *Tree) any { return t }),
		rapid.Map(rapid.SliceOfN(valueGen(keys, depth-1), 0, 3), func(s []any) any { return s }),
	)
}

func treeGen(keys []string, depth int) *rapid.Generator[*Tree] {
	return rapid.Custom(func(t *rapid.T) *Tree {
		tree := New()
		n := rapid.IntRange(0, len(keys)).Draw(t, "size")
		for i := 0; i < n; i++ {
			key := rapid.SampledFrom(keys).Draw(t, "key")
			tree.Set(key, valueGen(keys, depth).Draw(t, "value"))
		}
		return tree
	})
}

func pathGen(keys []string) *rapid.Generator[Path] {
	seg := rapid.Custom(func(t *rapid.T) Segment {
		if rapid.IntRange(0, 3).Draw(t, "kind") == 0 {
			return Index(rapid.IntRange(0, 3).Draw(t, "index"))
		}
		return Key(rapid.SampledFrom(keys).Draw(t, "segkey"))
	})
	return rapid.Custom(func(t *rapid.T) Path {
		first := Key(rapid.SampledFrom(keys).Draw(t, "root"))
		rest := rapid.SliceOfN(seg, 0, 3).Draw(t, "rest")
		return append(Path{first}, rest...)
	})
}

var propKeys = []string{"a", "b", "c"}

func TestProperty_ReadAfterWrite(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tree := treeGen(propKeys, 2).Draw(t, "tree")
		path := pathGen(propKeys).Draw(t, "path")
		value := valueGen(propKeys, 1).Draw(t, "written")

		before := tree.Clone()
		err := tree.Write(path, value)
		if errors.Is(err, ErrTypeMismatch) {
			if !Equal(tree, before) {
				t.Fatalf("failed write changed the tree")
			}
			return
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got, err := tree.Read(path)
		if err != nil {
			t.Fatalf("read after write %s: %v", path, err)
		}
		if !Equal(got, value) {
			t.Fatalf("read %v, wrote %v", got, value)
		}
	})
}

func TestProperty_WriteDoesNotTouchSiblings(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tree := treeGen(propKeys, 2).Draw(t, "tree")
		key := rapid.SampledFrom(propKeys).Draw(t, "key")

		before := tree.Clone()
		if err := tree.Write(P(key), "x"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, other := range propKeys {
			if other == key {
				continue
			}
			want, wantOK := before.Get(other)
			got, gotOK := tree.Get(other)
			if wantOK != gotOK || !Equal(want, got) {
				t.Fatalf("sibling %q changed: %v -> %v", other, want, got)
			}
		}
	})
}

// Ключи верхнего уровня каждого дерева берутся из двух групп из трёх,
// поэтому ни один путь не встречается во всех трёх деревьях сразу.
func TestProperty_MergeAssociative(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := treeGen([]string{"x", "y"}, 2).Draw(t, "a")
		b := treeGen([]string{"y", "z"}, 2).Draw(t, "b")
		c := treeGen([]string{"z", "x"}, 2).Draw(t, "c")

		left := Merged(Merged(a, b), c)
		right := Merged(a, Merged(b, c))

		if !Equal(left, right) {
			t.Fatalf("merge is not associative:\n(a+b)+c = %v\na+(b+c) = %v", left.ToPlain(), right.ToPlain())
		}
	})
}

func TestProperty_MergeRightBiased(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := treeGen(propKeys, 2).Draw(t, "a")
		b := treeGen(propKeys, 0).Draw(t, "b")

		merged := Merged(a, b)
		b.Each(func(key string, value any) bool {
			got, _ := merged.Get(key)
			if !Equal(got, value) {
				t.Fatalf("key %q: got %v, want %v", key, got, value)
			}
			return true
		})
	})
}

func TestProperty_JSONRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tree := treeGen(propKeys, 2).Draw(t, "tree")

		data, err := tree.MarshalJSON()
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		back, err := FromJSON(data)
		if err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		if !Equal(tree, back) {
			t.Fatalf("round trip mismatch: %s", data)
		}
	})
}
