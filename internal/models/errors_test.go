package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindTransient(t *testing.T) {
	transient := []Kind{KindGeocodeUnavailable, KindNavigation, KindRenderTimeout}
	terminal := []Kind{KindNoMatch, KindPropertyNotFound, KindParse, KindTimeout, KindCanceled, KindUnknown}

	for _, k := range transient {
		assert.Truef(t, k.Transient(), "%s should be transient", k)
	}
	for _, k := range terminal {
		assert.Falsef(t, k.Transient(), "%s should be terminal", k)
	}
}

func TestErrorIsMatchesSentinelByKind(t *testing.T) {
	err := Errorf(KindNoMatch, "nearest candidate %.1f km away", 12.5)
	wrapped := fmt.Errorf("site qv: %w", err)

	assert.True(t, errors.Is(wrapped, ErrNoMatch))
	assert.False(t, errors.Is(wrapped, ErrParse))
	assert.Equal(t, KindNoMatch, KindOf(wrapped))
	assert.Equal(t, "NoMatch: nearest candidate 12.5 km away", err.Error())
}

func TestErrorfKeepsWrappedCause(t *testing.T) {
	cause := errors.New("dial tcp: no such host")
	err := Errorf(KindNavigation, "navigate %s: %w", "https://qv.co.nz", cause)

	assert.True(t, errors.Is(err, cause))
	assert.True(t, IsTransient(err))
	assert.Equal(t, "NavigationError: navigate https://qv.co.nz: dial tcp: no such host", err.Error())
}

func TestKindOfContextErrors(t *testing.T) {
	assert.Equal(t, KindTimeout, KindOf(fmt.Errorf("render: %w", context.DeadlineExceeded)))
	assert.Equal(t, KindCanceled, KindOf(context.Canceled))
	assert.Equal(t, KindUnknown, KindOf(errors.New("boom")))
	assert.Equal(t, KindUnknown, KindOf(nil))
}

func TestClassify(t *testing.T) {
	e := Classify(errors.New("boom"), KindParse)
	require.NotNil(t, e)
	assert.Equal(t, KindParse, e.Kind)

	orig := Wrap(KindPropertyNotFound, nil, "listing removed")
	assert.Same(t, orig, Classify(fmt.Errorf("x: %w", orig), KindParse))
}

func TestCheckOrder(t *testing.T) {
	tests := []struct {
		name    string
		est     PriceEstimate
		wantErr bool
	}{
		{"all ascending", PriceEstimate{Lower: Amount(750000), Midpoint: Amount(785000), Upper: Amount(820000)}, false},
		{"equal figures", PriceEstimate{Lower: Amount(800000), Midpoint: Amount(800000), Upper: Amount(800000)}, false},
		{"midpoint only", PriceEstimate{Midpoint: Amount(900000)}, false},
		{"empty", PriceEstimate{}, false},
		{"midpoint above upper", PriceEstimate{Lower: Amount(1), Midpoint: Amount(900), Upper: Amount(800)}, true},
		{"lower above upper without midpoint", PriceEstimate{Lower: Amount(900000), Upper: Amount(800000)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.est.CheckOrder()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSummarize(t *testing.T) {
	ok := SiteResult{Site: "qv", State: StateDone, FromCache: true, Estimate: &PriceEstimate{Midpoint: Amount(1)}}
	var failed SiteResult
	failed.Site = "homes"
	failed.Fail(StateResolutionFailed, Errorf(KindNoMatch, "too far"))
	var timedOut SiteResult
	timedOut.Site = "oneroof"
	timedOut.Fail(StateExtracting, context.DeadlineExceeded)

	s := Summarize([]SiteResult{ok, failed, timedOut})

	assert.Equal(t, 3, s.Sites)
	assert.Equal(t, 1, s.Succeeded)
	assert.Equal(t, 2, s.Failed)
	assert.Equal(t, 1, s.CacheHits)
	assert.InDelta(t, 1.0/3.0, s.SuccessRate, 1e-9)
	assert.Equal(t, map[string]int{"NoMatch": 1, "Timeout": 1}, s.Failures)
	assert.Equal(t, "NoMatch: too far", failed.Row().Reason)
}

func TestKindText(t *testing.T) {
	b, err := json.Marshal(SiteResult{Site: "qv", Kind: KindNavigation})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"kind":"NavigationError"`)

	var back SiteResult
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, KindNavigation, back.Kind)

	var k Kind
	assert.Error(t, k.UnmarshalText([]byte("Exploded")))
}
