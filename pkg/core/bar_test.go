package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func bar(symbol string, day int, price float64) Bar {
	return Bar{
		Symbol: symbol,
		Time:   time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC),
		Open:   price,
		High:   price + 1,
		Low:    price - 1,
		Close:  price,
		Volume: 1000,
	}
}

func TestBarValidate(t *testing.T) {
	require.NoError(t, bar("AAPL", 2, 10).Validate())

	zeroPrice := bar("AAPL", 2, 10)
	zeroPrice.Close = 0
	require.ErrorIs(t, zeroPrice.Validate(), ErrInvalidBar)

	zeroVolume := bar("AAPL", 2, 10)
	zeroVolume.Volume = 0
	require.ErrorIs(t, zeroVolume.Validate(), ErrInvalidBar)

	inverted := bar("AAPL", 2, 10)
	inverted.High = 8
	require.ErrorIs(t, inverted.Validate(), ErrInvalidBar)
}

func TestValidateBars(t *testing.T) {
	bars := []Bar{bar("AAPL", 2, 10), bar("AAPL", 3, 11), bar("AAPL", 4, 12)}
	require.NoError(t, ValidateBars(bars))

	bars[2].Time = bars[1].Time
	require.ErrorIs(t, ValidateBars(bars), ErrInvalidBar)
}

func TestPriorityQueueGlobalClock(t *testing.T) {
	items := []Item{
		bar("MSFT", 3, 10),
		bar("AAPL", 3, 10),
		bar("MSFT", 2, 10),
		bar("AAPL", 2, 10),
		bar("NVDA", 2, 10),
	}
	queue := NewPriorityQueue(items)
	require.Equal(t, 5, queue.Len())

	var order []string
	for queue.Len() > 0 {
		b := queue.Pop().(Bar)
		order = append(order, b.Time.Format("02")+b.Symbol)
	}
	require.Equal(t, []string{"02AAPL", "02MSFT", "02NVDA", "03AAPL", "03MSFT"}, order)
	require.Nil(t, queue.Pop())
}

func TestPriorityQueuePopWhile(t *testing.T) {
	queue := NewPriorityQueue(nil)
	queue.Push(bar("B", 2, 10))
	queue.Push(bar("A", 2, 10))
	queue.Push(bar("A", 3, 10))

	first := queue.Peek().(Bar)
	batch := queue.PopWhile(func(item Item) bool {
		return item.(Bar).Time.Equal(first.Time)
	})
	require.Len(t, batch, 2)
	require.Equal(t, "A", batch[0].(Bar).Symbol)
	require.Equal(t, "B", batch[1].(Bar).Symbol)
	require.Equal(t, 1, queue.Len())
}

func TestFrameSampleAndAppend(t *testing.T) {
	frame := NewFrame("AAPL", []Bar{bar("AAPL", 2, 10), bar("AAPL", 3, 11), bar("AAPL", 4, 12)})
	require.Equal(t, 3, frame.Len())

	sample := frame.Sample(2)
	require.Equal(t, 2, sample.Len())
	require.Equal(t, 11.0, sample.Close.Last(1))
	require.Equal(t, 12.0, sample.LastBar().Close)

	require.ErrorIs(t, frame.Append(bar("AAPL", 4, 13)), ErrInvalidBar)
	require.NoError(t, frame.Append(bar("AAPL", 5, 13)))
	require.Equal(t, 13.0, frame.Close.Last(0))
}

func TestSeriesHelpers(t *testing.T) {
	s := Series[float64]{3, 1, 4, 1, 5}
	require.Equal(t, 5.0, s.Highest(3))
	require.Equal(t, 1.0, s.Lowest(3))
	require.True(t, Series[float64]{1, 3}.Crossover(Series[float64]{2, 2}))
	require.False(t, Series[float64]{3}.Crossover(Series[float64]{2}))
}
