package ir

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDeclaration(t *testing.T) {
	args := []ArgumentSpec{
		PositionalRef{Index: 0, Raw: "$0"},
		NewLiteral("hi", "`hi`"),
	}

	d, err := NewDeclaration("Vm.Save", args,
		WithName("save"),
		WithDebounce(200*time.Millisecond),
		WithEvents("Click, DoubleClick", "KeyUp"),
	)
	require.NoError(t, err)

	assert.Equal(t, "save", d.Name())
	assert.Equal(t, "Vm.Save", d.Path())
	assert.Equal(t, 2, d.NumArgs())
	assert.Equal(t, 200*time.Millisecond, d.Debounce())
	assert.Equal(t, []string{"Click", "DoubleClick", "KeyUp"}, d.Events())
	assert.Equal(t, "Vm.Save, $0, `hi`, Debounce = 200", d.String())
}

func TestNewDeclaration_Immutable(t *testing.T) {
	args := []ArgumentSpec{NewLiteral(1, "1")}
	d, err := NewDeclaration("Run", args, WithEvents("Click"))
	require.NoError(t, err)

	// Mutating the input and the returned copies never reaches the declaration
	args[0] = NewLiteral(2, "2")
	got := d.Args()
	got[0] = NewLiteral(3, "3")
	events := d.Events()
	events[0] = "Other"

	assert.Equal(t, 1, d.Arg(0).(Literal).Value)
	assert.Equal(t, []string{"Click"}, d.Events())
}

func TestNewDeclaration_Errors(t *testing.T) {
	_, err := NewDeclaration("  ", nil)
	require.Error(t, err)
	assert.True(t, IsMissingMember(err))

	_, err = NewDeclaration("Run", nil, WithDebounce(-time.Second))
	require.Error(t, err)

	_, err = NewDeclaration("Run", []ArgumentSpec{nil})
	require.Error(t, err)
	assert.True(t, IsParseError(err))
}

func TestDeclaration_NameDefaultsToPath(t *testing.T) {
	d, err := NewDeclaration("Vm.Open", nil)
	require.NoError(t, err)
	assert.Equal(t, "Vm.Open", d.Name())
}

func TestSplitEvents(t *testing.T) {
	assert.Equal(t, []string{"A", "B", "C"}, SplitEvents("A,B", " , C ,"))
	assert.Nil(t, SplitEvents(""))
}

func TestArgumentSpecKinds(t *testing.T) {
	tests := []struct {
		spec ArgumentSpec
		kind ArgKind
		str  string
	}{
		{NewLiteral(7, "7"), KindLiteral, "7"},
		{NewLiteral("x", ""), KindLiteral, "x"},
		{PositionalRef{Index: 2}, KindPositional, "$2"},
		{BoundValue{Descriptor: "Name"}, KindBound, "{bind Name}"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.kind, tt.spec.Kind())
		assert.Equal(t, tt.str, tt.spec.String())
	}
}

func TestNewLiteral_Type(t *testing.T) {
	l := NewLiteral(3.5, "3.5")
	assert.Equal(t, reflect.TypeOf(float64(0)), l.Type)

	nilLit := NewLiteral(nil, "")
	assert.Nil(t, nilLit.Type)
}

func TestLifecycleStateString(t *testing.T) {
	assert.Equal(t, "bound", StateBound.String())
	assert.Equal(t, "unbound", StateUnbound.String())
}
