//go:build linux

package linuxgpio

import (
	"errors"
	"sync"
	"testing"

	"pendant-go/errcode"
	"pendant-go/internal/hw"
)

func emptyBoard() *Board {
	return &Board{
		inputs:   map[hw.Pin]*input{},
		encoders: map[hw.Counter]*encoder{},
	}
}

func TestEncoderIgnoresEventsBeforeLinesAttached(t *testing.T) {
	e := &encoder{quad: hw.NewQuadrature(400)}
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				e.sample()
			}
		}()
	}
	wg.Wait()
	if n, _ := e.quad.Read(); n != 0 {
		t.Fatalf("count moved without lines: %d", n)
	}
}

func TestReadPinConcurrentWithClose(t *testing.T) {
	b := emptyBoard()
	b.inputs[3] = &input{cfg: Input{Pin: 3}}
	b.encoders[0] = &encoder{quad: hw.NewQuadrature(400)}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_, err := b.ReadPin(3)
			if !errors.Is(err, errcode.UnknownPin) {
				t.Errorf("read %d: %v", i, err)
				return
			}
		}
	}()
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
	wg.Wait()

	if _, err := b.ReadPin(3); !errors.Is(err, errcode.UnknownPin) {
		t.Fatalf("read after close: %v", err)
	}
	if _, _, err := b.ReadCounter(0); !errors.Is(err, errcode.UnknownPin) {
		t.Fatalf("counter after close: %v", err)
	}
}
