package marshal_test

import (
	"testing"

	"github.com/mna/nenuphar/lang/machine"
	"github.com/mna/nenuphar/lang/marshal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundtrip(t *testing.T, v machine.Value) machine.Value {
	t.Helper()
	data, err := marshal.Marshal(v, nil)
	require.NoError(t, err)
	got, next, err := marshal.Unmarshal(data, nil)
	require.NoError(t, err)
	assert.Equal(t, len(data), next)
	return got
}

func TestConcreteScenarios(t *testing.T) {
	t.Run("42", func(t *testing.T) {
		data, err := marshal.Marshal(machine.Int(42), nil)
		require.NoError(t, err)
		assert.Equal(t, []byte{0x2A}, data)
		v, next, err := marshal.Unmarshal(data, nil)
		require.NoError(t, err)
		assert.Equal(t, machine.Int(42), v)
		assert.Equal(t, 1, next)
	})

	t.Run("-1", func(t *testing.T) {
		data, err := marshal.Marshal(machine.Int(-1), nil)
		require.NoError(t, err)
		assert.Equal(t, []byte{0xBF, 0xFF}, data)
		v, _, err := marshal.Unmarshal(data, nil)
		require.NoError(t, err)
		assert.Equal(t, machine.Int(-1), v)
	})

	t.Run("1_000_000", func(t *testing.T) {
		data, err := marshal.Marshal(machine.Int(1_000_000), nil)
		require.NoError(t, err)
		assert.Equal(t, []byte{0xC8, 0x00, 0x0F, 0x42, 0x40}, data)
		v, _, err := marshal.Unmarshal(data, nil)
		require.NoError(t, err)
		assert.Equal(t, machine.Int(1_000_000), v)
	})

	t.Run("hi", func(t *testing.T) {
		data, err := marshal.Marshal(machine.String("hi"), nil)
		require.NoError(t, err)
		assert.Equal(t, []byte{0xCF, 0x02, 'h', 'i'}, data)
		v, _, err := marshal.Unmarshal(data, nil)
		require.NoError(t, err)
		assert.Equal(t, machine.String("hi"), v)
	})

	t.Run("self-referential array", func(t *testing.T) {
		a := machine.NewArray(make([]machine.Value, 1))
		require.NoError(t, a.SetIndex(0, a))

		data, err := marshal.Marshal(a, nil)
		require.NoError(t, err)
		assert.Equal(t, []byte{0xD2, 0x01, 0xDB, 0x00}, data)

		v, _, err := marshal.Unmarshal(data, nil)
		require.NoError(t, err)
		got, ok := v.(*machine.Array)
		require.True(t, ok)
		require.Equal(t, 1, got.Len())
		assert.Same(t, got, got.Index(0))
	})
}

func TestPrimitiveRoundtrip(t *testing.T) {
	cases := []machine.Value{
		machine.Nil,
		machine.True,
		machine.False,
		machine.Int(0),
		machine.Int(-8192),
		machine.Int(8191),
		machine.Float(3.5),
		machine.Float(-0.0),
		machine.String("hello, world"),
		machine.Symbol("a-symbol"),
		machine.Keyword("a-keyword"),
	}
	for _, c := range cases {
		got := roundtrip(t, c)
		assert.Equal(t, c, got)
	}
}

func TestBufferRoundtrip(t *testing.T) {
	b := machine.NewBuffer([]byte("mutable"))
	got := roundtrip(t, b)
	gb, ok := got.(*machine.Buffer)
	require.True(t, ok)
	assert.Equal(t, b.Bytes(), gb.Bytes())
}

func TestTupleRoundtrip(t *testing.T) {
	tup := machine.NewTupleFlags([]machine.Value{machine.Int(1), machine.String("x")}, 7)
	got := roundtrip(t, tup)
	gt, ok := got.(*machine.Tuple)
	require.True(t, ok)
	assert.Equal(t, 2, gt.Len())
	assert.Equal(t, machine.Int(1), gt.Index(0))
	assert.Equal(t, machine.String("x"), gt.Index(1))
	assert.Equal(t, uint32(7), gt.Flags)
}

func TestMapRoundtripWithProto(t *testing.T) {
	proto := machine.NewMap(1)
	require.NoError(t, proto.SetKey(machine.Keyword("base"), machine.Int(1)))

	m := machine.NewMap(1)
	m.Proto = proto
	require.NoError(t, m.SetKey(machine.Keyword("own"), machine.Int(2)))

	got := roundtrip(t, m)
	gm, ok := got.(*machine.Map)
	require.True(t, ok)
	require.NotNil(t, gm.Proto)

	v, found, err := gm.Get(machine.Keyword("own"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, machine.Int(2), v)

	v, found, err = gm.Get(machine.Keyword("base"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, machine.Int(1), v)
}

func TestStructRoundtrip(t *testing.T) {
	s := machine.NewStruct(
		[]machine.Value{machine.Keyword("a"), machine.Keyword("b")},
		[]machine.Value{machine.Int(1), machine.Int(2)},
	)
	got := roundtrip(t, s)
	gs, ok := got.(*machine.Struct)
	require.True(t, ok)
	v, found, err := gs.Get(machine.Keyword("b"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, machine.Int(2), v)
}

func TestIdentityPreservedAcrossSharedSubobject(t *testing.T) {
	shared := machine.NewArray([]machine.Value{machine.Int(1)})
	outer := machine.NewTuple([]machine.Value{shared, shared})

	got := roundtrip(t, outer)
	gt, ok := got.(*machine.Tuple)
	require.True(t, ok)
	a0, ok0 := gt.Index(0).(*machine.Array)
	a1, ok1 := gt.Index(1).(*machine.Array)
	require.True(t, ok0)
	require.True(t, ok1)
	assert.Same(t, a0, a1)
}

func TestTailLaw(t *testing.T) {
	var buf []byte
	buf, err := marshal.AppendMarshal(buf, machine.Int(1), nil)
	require.NoError(t, err)
	buf, err = marshal.AppendMarshal(buf, machine.String("two"), nil)
	require.NoError(t, err)

	a, next, err := marshal.Unmarshal(buf, nil)
	require.NoError(t, err)
	assert.Equal(t, machine.Int(1), a)

	b, next2, err := marshal.Unmarshal(buf[next:], nil)
	require.NoError(t, err)
	assert.Equal(t, machine.String("two"), b)
	assert.Equal(t, len(buf), next+next2)
}

func TestRegistryLaw(t *testing.T) {
	sentinel := machine.NewArray(nil)
	rev := map[machine.Value]string{sentinel: "the-sentinel"}

	data, err := marshal.Marshal(sentinel, rev)
	require.NoError(t, err)

	other := machine.NewArray([]machine.Value{machine.Int(9)})
	fwd := map[string]machine.Value{"the-sentinel": other}

	got, _, err := marshal.Unmarshal(data, fwd)
	require.NoError(t, err)
	assert.Same(t, other, got)
}

func TestRegistryMissYieldsNil(t *testing.T) {
	sentinel := machine.NewArray(nil)
	rev := map[machine.Value]string{sentinel: "unknown-name"}

	data, err := marshal.Marshal(sentinel, rev)
	require.NoError(t, err)

	got, _, err := marshal.Unmarshal(data, nil)
	require.NoError(t, err)
	assert.Equal(t, machine.Nil, got)
}

func TestTruncationFailsCleanly(t *testing.T) {
	data, err := marshal.Marshal(machine.String("hello"), nil)
	require.NoError(t, err)

	for k := 0; k < len(data); k++ {
		_, _, err := marshal.Unmarshal(data[:k], nil)
		if err == nil {
			continue // a valid shorter prefix is acceptable, just not a crash
		}
		assert.Error(t, err)
	}
}

func TestBadReferenceFails(t *testing.T) {
	_, _, err := marshal.Unmarshal([]byte{0xDB, 0x05}, nil)
	assert.ErrorIs(t, err, marshal.ErrBadReference)
}

func TestUnregisteredOpaqueFails(t *testing.T) {
	_, err := marshal.Marshal(&machine.Opaque{Descriptor: &machine.OpaqueDescriptor{Name: "no-codec"}}, nil)
	assert.ErrorIs(t, err, marshal.ErrUnregisteredOpaque)
}

func TestAliveCoroutineFails(t *testing.T) {
	co := machine.NewCoroutine(0)
	co.Status = machine.CoroutineAlive
	_, err := marshal.Marshal(co, nil)
	assert.ErrorIs(t, err, marshal.ErrAliveCoroutine)
}

func TestImageRoundtrip(t *testing.T) {
	img, err := marshal.WriteImage(machine.String("some program bytes"), nil)
	require.NoError(t, err)

	v, err := marshal.ReadImage(img, nil)
	require.NoError(t, err)
	assert.Equal(t, machine.String("some program bytes"), v)
}

func TestImageRejectsCorruption(t *testing.T) {
	img, err := marshal.WriteImage(machine.String("some program bytes"), nil)
	require.NoError(t, err)
	img[len(img)-1] ^= 0xFF

	_, err = marshal.ReadImage(img, nil)
	assert.Error(t, err)
}
