package watch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lookout/internal/frame"
	"lookout/internal/oracle"
)

// scriptedSource hands out numbered frames and fails with ErrUnavailable
// after Limit frames when Limit is set. A negative Limit yields no frames.
type scriptedSource struct {
	mu    sync.Mutex
	Limit int
	Calls int
}

func (s *scriptedSource) Latest() (*frame.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Limit != 0 && s.Calls >= s.Limit {
		return nil, frame.ErrUnavailable
	}
	s.Calls++
	return &frame.Frame{Seq: uint64(s.Calls), JPEG: []byte{byte(s.Calls)}}, nil
}

// scriptedJudge answers with oracle text through the real marker rule.
type scriptedJudge struct {
	EvaluateFunc func(n int, f *frame.Frame) (string, error)

	mu    sync.Mutex
	Calls int
	Seen  []uint64
}

func (j *scriptedJudge) Evaluate(_ context.Context, _ string, f *frame.Frame) (oracle.Verdict, error) {
	j.mu.Lock()
	j.Calls++
	n := j.Calls
	j.Seen = append(j.Seen, f.Seq)
	j.mu.Unlock()

	answer, err := j.EvaluateFunc(n, f)
	if err != nil {
		return oracle.Verdict{}, err
	}
	return oracle.ParseVerdict(answer), nil
}

func yesOnCall(n int) func(int, *frame.Frame) (string, error) {
	return func(call int, _ *frame.Frame) (string, error) {
		if call == n {
			return "Yes, a red car is parked across the street. It is next to a lamp post.", nil
		}
		return "No", nil
	}
}

func intervalWatcher(src frame.Source, j Evaluator, cfg Config) *Watcher {
	return NewWatcher(j, func() Pacer { return NewIntervalPacer(src, 0) }, cfg)
}

func TestRunStopsOnNthEvaluation(t *testing.T) {
	for _, n := range []int{1, 2, 7} {
		src := &scriptedSource{}
		j := &scriptedJudge{EvaluateFunc: yesOnCall(n)}

		res, err := intervalWatcher(src, j, Config{}).Run(context.Background(), "a red car is in the image")
		require.NoError(t, err)

		assert.True(t, res.Met)
		assert.Equal(t, n, res.Evaluations)
		assert.Equal(t, n, j.Calls)
		assert.Equal(t, n, src.Calls)
		assert.Equal(t, "Yes, a red car is parked across the street. It is next to a lamp post.", res.Text)
	}
}

func TestRunMarkerRule(t *testing.T) {
	src := &scriptedSource{Limit: 6}
	j := &scriptedJudge{EvaluateFunc: func(call int, _ *frame.Frame) (string, error) {
		switch call {
		case 1:
			return "No, but a poster reads yes we can.", nil
		case 2:
			return "No. Yesterday's newspaper is on the table.", nil
		case 3:
			return "yes", nil
		case 4:
			return "Sure! Yes, a red car is parked by the curb.", nil
		}
		return "No", nil
	}}

	res, err := intervalWatcher(src, j, Config{}).Run(context.Background(), "a red car is in the image")
	require.NoError(t, err)
	assert.True(t, res.Met)
	assert.Equal(t, 4, res.Evaluations)
	assert.Equal(t, "Sure! Yes, a red car is parked by the curb.", res.Text)
}

func TestRunNeverMetWithoutMarker(t *testing.T) {
	src := &scriptedSource{Limit: 3}
	j := &scriptedJudge{EvaluateFunc: func(call int, _ *frame.Frame) (string, error) {
		switch call {
		case 1:
			return "No, nothing like that.", nil
		case 2:
			return "YES", nil
		}
		return "No", nil
	}}

	res, err := intervalWatcher(src, j, Config{}).Run(context.Background(), "a red car is in the image")
	require.NoError(t, err)
	assert.False(t, res.Met)
	assert.Equal(t, 3, res.Evaluations)
	assert.Equal(t, NotObserved, res.Text)
}

func TestRunSourceExhaustedIsSoft(t *testing.T) {
	src := &scriptedSource{Limit: 3}
	j := &scriptedJudge{EvaluateFunc: yesOnCall(100)}

	res, err := intervalWatcher(src, j, Config{}).Run(context.Background(), "a cat is in the image")
	require.NoError(t, err)
	assert.False(t, res.Met)
	assert.Equal(t, 3, res.Evaluations)
	assert.Equal(t, NotObserved, res.Text)
}

func TestRunWithoutAnyFrame(t *testing.T) {
	src := &scriptedSource{Limit: -1}
	j := &scriptedJudge{EvaluateFunc: yesOnCall(1)}

	res, err := intervalWatcher(src, j, Config{}).Run(context.Background(), "a cat is in the image")
	require.Error(t, err)
	assert.ErrorIs(t, err, frame.ErrUnavailable)
	assert.Zero(t, res.Evaluations)
	assert.Zero(t, j.Calls)
}

func TestFramePacerClosedBeforeFirstFrame(t *testing.T) {
	slot := frame.NewSlot()
	slot.Close()
	j := &scriptedJudge{EvaluateFunc: yesOnCall(1)}
	w := NewWatcher(j, func() Pacer { return NewFramePacer(slot, 30) }, Config{})

	_, err := w.Run(context.Background(), "a cat is in the image")
	assert.ErrorIs(t, err, frame.ErrUnavailable)
	assert.Zero(t, j.Calls)
}

func TestRunMaxWaitIsSoft(t *testing.T) {
	src := &scriptedSource{}
	j := &scriptedJudge{EvaluateFunc: yesOnCall(-1)}
	w := NewWatcher(j, func() Pacer { return NewIntervalPacer(src, 5*time.Millisecond) }, Config{MaxWait: 40 * time.Millisecond})

	res, err := w.Run(context.Background(), "a cat is in the image")
	require.NoError(t, err)
	assert.False(t, res.Met)
	assert.Greater(t, res.Evaluations, 0)
	assert.Equal(t, NotObserved, res.Text)
}

func TestRunCanceled(t *testing.T) {
	src := &scriptedSource{}
	j := &scriptedJudge{EvaluateFunc: yesOnCall(-1)}
	w := NewWatcher(j, func() Pacer { return NewIntervalPacer(src, 5*time.Millisecond) }, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	_, err := w.Run(ctx, "a cat is in the image")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunToleratesTransientFailures(t *testing.T) {
	src := &scriptedSource{}
	j := &scriptedJudge{EvaluateFunc: func(call int, _ *frame.Frame) (string, error) {
		switch call {
		case 1, 2:
			return "", oracle.ErrUnavailable
		case 3:
			return "No", nil
		case 4:
			return "", oracle.ErrUnavailable
		}
		return "Yes, there it is.", nil
	}}

	res, err := intervalWatcher(src, j, Config{MaxFailures: 3}).Run(context.Background(), "a cat is in the image")
	require.NoError(t, err)
	assert.True(t, res.Met)
	assert.Equal(t, 5, res.Evaluations)
}

func TestRunAbortsAfterConsecutiveFailures(t *testing.T) {
	src := &scriptedSource{}
	j := &scriptedJudge{EvaluateFunc: func(int, *frame.Frame) (string, error) {
		return "", oracle.ErrUnavailable
	}}

	res, err := intervalWatcher(src, j, Config{MaxFailures: 2}).Run(context.Background(), "a cat is in the image")
	require.Error(t, err)
	assert.ErrorIs(t, err, oracle.ErrUnavailable)
	assert.Equal(t, 2, res.Evaluations)
}

func TestFramePacerEvaluatesEveryNthFrame(t *testing.T) {
	slot := frame.NewSlot()
	j := &scriptedJudge{EvaluateFunc: yesOnCall(3)}
	w := NewWatcher(j, func() Pacer { return NewFramePacer(slot, 30) }, Config{})

	slot.Store([]byte{0}, time.Now())

	done := make(chan Result, 1)
	go func() {
		res, err := w.Run(context.Background(), "a cat is in the image")
		assert.NoError(t, err)
		done <- res
	}()

	for i := 0; i < 200; i++ {
		slot.Store([]byte{byte(i)}, time.Now())
		time.Sleep(100 * time.Microsecond)
		select {
		case res := <-done:
			assert.True(t, res.Met)
			assert.Equal(t, 3, res.Evaluations)
			require.Len(t, j.Seen, 3)
			assert.GreaterOrEqual(t, j.Seen[1]-j.Seen[0], uint64(30))
			assert.GreaterOrEqual(t, j.Seen[2]-j.Seen[1], uint64(30))
			return
		default:
		}
	}

	slot.Close()
	res := <-done
	t.Fatalf("condition not met after 200 frames, evaluations=%d", res.Evaluations)
}

func TestFramePacerCameraGone(t *testing.T) {
	slot := frame.NewSlot()
	j := &scriptedJudge{EvaluateFunc: yesOnCall(-1)}
	w := NewWatcher(j, func() Pacer { return NewFramePacer(slot, 30) }, Config{})

	slot.Store([]byte{0}, time.Now())
	go func() {
		time.Sleep(20 * time.Millisecond)
		slot.Close()
	}()

	res, err := w.Run(context.Background(), "a cat is in the image")
	require.NoError(t, err)
	assert.False(t, res.Met)
	assert.Equal(t, 1, res.Evaluations)
}

func TestIntervalPacerWaitsBetweenFrames(t *testing.T) {
	src := &scriptedSource{}
	p := NewIntervalPacer(src, 20*time.Millisecond)
	defer p.Stop()

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := p.Next(context.Background())
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "sampling", StateSampling.String())
	assert.Equal(t, "done", StateDone.String())
}
