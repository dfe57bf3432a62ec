package event

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestTradeEventPool_Reset(t *testing.T) {
	ev := AcquireTradeEvent()
	ev.Seq = 7
	ev.Symbol = "ACME"
	ev.Quantity = 10
	ev.Price = decimal.NewFromInt(12)
	ReleaseTradeEvent(ev)

	again := AcquireTradeEvent()
	defer ReleaseTradeEvent(again)
	if again.Seq != 0 || again.Symbol != "" || again.Quantity != 0 || !again.Price.IsZero() {
		t.Errorf("Expected zeroed event, got %+v", again)
	}
}

func TestFanout_PublishesInOrder(t *testing.T) {
	var got []string
	f := Fanout{
		PublisherFunc(func(ev Event) { got = append(got, "first:"+string(ev.GetType())) }),
		nil,
		PublisherFunc(func(ev Event) { got = append(got, "second:"+string(ev.GetType())) }),
	}

	f.Publish(&OrderEvent{Status: OrderPlaced})

	if len(got) != 2 || got[0] != "first:ORDER" || got[1] != "second:ORDER" {
		t.Errorf("Unexpected publish order: %v", got)
	}
}

func TestNextSeq_Increases(t *testing.T) {
	a := NextSeq()
	b := NextSeq()
	if b <= a {
		t.Errorf("Expected increasing sequence, got %d then %d", a, b)
	}
}

func BenchmarkTradeEventPool(b *testing.B) {
	Warmup()
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		ev := AcquireTradeEvent()
		ev.Seq = uint64(i)
		ev.Symbol = "ACME"
		ReleaseTradeEvent(ev)
	}
}
