package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/insightdelivered/order-reconciler/internal/models"
	"github.com/insightdelivered/order-reconciler/internal/truthsource"
)

// fakeSource serves canned answers and can fail, stall or panic per order.
type fakeSource struct {
	*truthsource.Static
	fail  map[string]error
	panic map[string]bool
	delay time.Duration

	mu    sync.Mutex
	calls []string
}

func (f *fakeSource) record(mode models.SourceMode, key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, string(mode)+":"+key)
}

// intercept applies the scripted behaviour. fail is keyed by "MODE:key".
func (f *fakeSource) intercept(ctx context.Context, mode models.SourceMode, key string) error {
	if f.panic[key] {
		panic("truth source exploded on " + key)
	}
	if err := f.fail[string(mode)+":"+key]; err != nil {
		return err
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (f *fakeSource) GetOrder(ctx context.Context, mode models.SourceMode, orderNumber string) (*models.OrderRecord, error) {
	f.record(mode, orderNumber)
	if err := f.intercept(ctx, mode, orderNumber); err != nil {
		return nil, err
	}
	return f.Static.GetOrder(ctx, mode, orderNumber)
}

func (f *fakeSource) FindByTracking(ctx context.Context, mode models.SourceMode, tracking string, hint models.Date) ([]models.ActivityPackage, error) {
	f.record(mode, tracking)
	if err := f.intercept(ctx, mode, tracking); err != nil {
		return nil, err
	}
	return f.Static.FindByTracking(ctx, mode, tracking, hint)
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		Static: truthsource.NewStatic(truthsource.Fixture{
			models.ModePO: {
				{OrderNumber: "PO-200", PartyName: "Acme Corp", Packages: []models.ActivityPackage{
					{TrackingNumber: "1Z999AA10123456784", Date: models.MustDate("2024-02-03")},
				}},
			},
			models.ModeSO: {
				{OrderNumber: "X-1", PartyName: "Beta LLC", Packages: []models.ActivityPackage{
					{TrackingNumber: "1ZSO0000000000001", Date: models.MustDate("2024-03-10")},
				}},
			},
		}),
		fail:  map[string]error{},
		panic: map[string]bool{},
	}
}

func TestVerify_Scenarios(t *testing.T) {
	src := newFakeSource()
	v := &Verifier{Source: src, Policy: DefaultPolicy()}
	ctx := context.Background()

	t.Run("existing order dated two days later", func(t *testing.T) {
		row := uploadRow(models.ModePO, "PO-200", "", "2024-02-01", 1)
		res := v.Verify(ctx, row)
		if res.Verdict != models.VerdictMismatch || res.DayDelta != models.Delta(2) {
			t.Errorf("got %s %+v (%s)", res.Verdict, res.DayDelta, res.Reason)
		}
		if res.ChosenMode != models.ModePO || res.PartyTruth != "Acme Corp" {
			t.Errorf("got chosen %q party %q", res.ChosenMode, res.PartyTruth)
		}
	})

	t.Run("unknown order", func(t *testing.T) {
		res := v.Verify(ctx, uploadRow(models.ModePO, "PO-404", "", "2024-02-01", 2))
		if res.Verdict != models.VerdictNotFound || res.DayDelta.Valid {
			t.Errorf("got %s %+v", res.Verdict, res.DayDelta)
		}
		if res.POVerdict != models.VerdictNotFound || res.SOVerdict != models.VerdictNotFound {
			t.Errorf("both interpretations should be reported: %s %s", res.POVerdict, res.SOVerdict)
		}
	})

	t.Run("PO miss but SO hit", func(t *testing.T) {
		res := v.Verify(ctx, uploadRow(models.ModePO, "X-1", "", "2024-03-10", 3))
		if res.ChosenMode != models.ModeSO || res.Verdict != models.VerdictOK {
			t.Errorf("got %q %s", res.ChosenMode, res.Verdict)
		}
		if res.POVerdict != models.VerdictNotFound || res.SOVerdict != models.VerdictOK {
			t.Errorf("sub-verdicts: PO %s SO %s", res.POVerdict, res.SOVerdict)
		}
		if res.SourceMode != models.ModePO {
			t.Errorf("declared mode should be kept, got %q", res.SourceMode)
		}
	})

	t.Run("tracking only row", func(t *testing.T) {
		res := v.Verify(ctx, uploadRow(models.ModeUPS, "", "1Z999AA10123456784", "2024-02-03", 4))
		if res.Verdict != models.VerdictOK || res.ChosenMode != models.ModePO {
			t.Errorf("got %q %s (%s)", res.ChosenMode, res.Verdict, res.Reason)
		}
	})
}

func TestVerify_ErrorIsDistinctFromNotFound(t *testing.T) {
	src := newFakeSource()
	src.fail["PO:PO-500"] = errors.New("connection reset")
	v := &Verifier{Source: src, Policy: DefaultPolicy(), Modes: []models.SourceMode{models.ModePO}}

	res := v.Verify(context.Background(), uploadRow(models.ModePO, "PO-500", "", "", 1))
	if res.Verdict != models.VerdictError {
		t.Errorf("got %s, want ERROR", res.Verdict)
	}
	if res.SOVerdict != models.VerdictUnset {
		t.Errorf("SO was not requested, got %s", res.SOVerdict)
	}
}

func TestVerify_PanicBecomesError(t *testing.T) {
	src := newFakeSource()
	src.panic["PO-BOOM"] = true
	v := &Verifier{Source: src, Policy: DefaultPolicy()}

	res := v.Verify(context.Background(), uploadRow(models.ModePO, "PO-BOOM", "", "", 1))
	if res.Verdict != models.VerdictError || res.Reason == "" {
		t.Errorf("got %s %q", res.Verdict, res.Reason)
	}
}

func TestVerify_EvaluatesEveryInterpretation(t *testing.T) {
	src := newFakeSource()
	v := &Verifier{Source: src, Policy: DefaultPolicy()}

	// PO already yields OK; SO must still be queried.
	v.Verify(context.Background(), uploadRow(models.ModePO, "PO-200", "", "2024-02-03", 1))

	seen := map[string]bool{}
	for _, c := range src.calls {
		seen[c] = true
	}
	if !seen["PO:PO-200"] || !seen["SO:PO-200"] {
		t.Errorf("calls: %v", src.calls)
	}
}

func TestInterpretations(t *testing.T) {
	tests := []struct {
		name  string
		mode  models.SourceMode
		modes []models.SourceMode
		want  []models.SourceMode
	}{
		{"po file", models.ModePO, nil, []models.SourceMode{models.ModePO, models.ModeSO}},
		{"shipdocs file", models.ModeShipDocs, nil, []models.SourceMode{models.ModeSO, models.ModePO}},
		{"ups file", models.ModeUPS, nil, []models.SourceMode{models.ModePO, models.ModeSO}},
		{"restricted to SO", models.ModePO, []models.SourceMode{models.ModeSO}, []models.SourceMode{models.ModeSO}},
		{"restriction keeps preferred first", models.ModeSO, []models.SourceMode{models.ModePO, models.ModeSO}, []models.SourceMode{models.ModeSO, models.ModePO}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &Verifier{Modes: tt.modes}
			got := v.Interpretations(models.UploadRow{SourceMode: tt.mode})
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}
