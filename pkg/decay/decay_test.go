package decay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestObserveClimbsLevels(t *testing.T) {
	var p Params
	e := Entry{}

	for i := 0; i < CountsPerLevel; i++ {
		e = Observe(e, true, p)
	}
	assert.Equal(t, 1, e.Level)
	assert.Equal(t, 0, e.Count)

	for i := 0; i < CountsPerLevel*10; i++ {
		e = Observe(e, true, p)
	}
	assert.Equal(t, MaxLevel, e.Level, "level is capped")
}

func TestInvalidObservationsStayAtLevelZero(t *testing.T) {
	var p Params
	e := Entry{}
	for i := 0; i < CountsPerLevel*3; i++ {
		e = Observe(e, false, p)
	}
	assert.Equal(t, 0, e.Level)
	assert.Equal(t, CountsPerLevel-1, e.Count)
}

func TestElapseStepsDown(t *testing.T) {
	var p Params
	e := Entry{Level: 1, Count: 2}

	e = Elapse(e, DefaultHalflife*2, true, p)
	assert.Equal(t, 1, e.Level)
	assert.Equal(t, 0, e.Count)

	e = Elapse(e, DefaultHalflife, true, p)
	assert.Equal(t, 0, e.Level)
	assert.Equal(t, CountsPerLevel-1, e.Count)
}

func TestInvalidDecaysFaster(t *testing.T) {
	var p Params
	valid := Entry{Level: 0, Count: 10}
	invalid := Entry{Level: 0, Count: 10}

	elapsed := DefaultHalflife
	valid = Elapse(valid, elapsed, true, p)
	invalid = Elapse(invalid, elapsed, false, p)

	assert.Less(t, invalid.Count, valid.Count)
}

func TestDecayToDeath(t *testing.T) {
	var p Params
	e := Entry{Level: 0, Count: 3}
	e = Elapse(e, DefaultHalflife*100, false, p)
	assert.False(t, e.IsAlive())
	assert.Equal(t, 0, e.Freq(p))
}

func TestFreqMonotonicInLevel(t *testing.T) {
	var p Params
	prev := -1
	for level := 0; level <= MaxLevel; level++ {
		f := Entry{Level: level, Count: 1}.Freq(p)
		assert.Greater(t, f, prev, "level %d", level)
		prev = f
	}
	assert.LessOrEqual(t, Entry{Level: MaxLevel, Count: CountsPerLevel - 1}.Freq(p), 255)
}

func TestNextFrequencyCombinesElapseAndObserve(t *testing.T) {
	var p Params
	e := Entry{Level: 0, Count: 5}

	// one halflife down, two observations up
	e = NextFrequency(e, 2, true, DefaultHalflife, p)
	assert.Equal(t, 6, e.Count)

	// no elapsed time, no observations: unchanged
	same := NextFrequency(e, 0, true, 0, p)
	assert.Equal(t, e, same)
}

func TestCustomParams(t *testing.T) {
	p := Params{Halflife: time.Hour, CountsPerLevel: 4, MaxLevel: 2}
	e := Entry{}
	for i := 0; i < 4; i++ {
		e = Observe(e, true, p)
	}
	assert.Equal(t, 1, e.Level)

	e = Elapse(e, 5*time.Hour, true, p)
	assert.Equal(t, 0, e.Level)
}
