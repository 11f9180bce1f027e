package model

import (
	"testing"
	"time"
)

func TestEffectiveStatus_FreshValidStaysValid(t *testing.T) {
	now := time.Now()
	checkedAt := now.Add(-1 * time.Hour)
	link := &Link{Status: LinkStatusValid, LastCheckedAt: &checkedAt}

	if got := link.EffectiveStatus(now, 24*time.Hour); got != LinkStatusValid {
		t.Errorf("鮮度ウィンドウ内のvalidはvalidのままであるべきです: got %s", got)
	}
}

func TestEffectiveStatus_OldCheckBecomesStale(t *testing.T) {
	now := time.Now()
	checkedAt := now.Add(-25 * time.Hour)

	for _, status := range []LinkStatus{LinkStatusValid, LinkStatusInvalid} {
		link := &Link{Status: status, LastCheckedAt: &checkedAt}
		if got := link.EffectiveStatus(now, 24*time.Hour); got != LinkStatusStale {
			t.Errorf("status=%s: 鮮度ウィンドウ超過後はstaleであるべきです: got %s", status, got)
		}
	}
}

func TestEffectiveStatus_UncheckedNeverStale(t *testing.T) {
	now := time.Now()
	link := &Link{Status: LinkStatusUnchecked, CreatedAt: now.Add(-100 * time.Hour)}

	if got := link.EffectiveStatus(now, 24*time.Hour); got != LinkStatusUnchecked {
		t.Errorf("uncheckedはstaleにならないべきです: got %s", got)
	}
}

func TestEffectiveStatus_ExactBoundaryIsFresh(t *testing.T) {
	now := time.Now()
	checkedAt := now.Add(-24 * time.Hour)
	link := &Link{Status: LinkStatusValid, LastCheckedAt: &checkedAt}

	// 経過時間がウィンドウと等しい場合はまだ新鮮として扱う
	if got := link.EffectiveStatus(now, 24*time.Hour); got != LinkStatusValid {
		t.Errorf("ウィンドウちょうどの経過はvalidであるべきです: got %s", got)
	}
}
