//go:build linux

package i2c

import (
	"os"
	"strings"
	"testing"
)

func openNullBus(t *testing.T) *Bus {
	t.Helper()
	f, err := os.OpenFile("/dev/null", os.O_RDWR, 0)
	if err != nil {
		t.Fatalf("OpenFile /dev/null: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return &Bus{f: f, path: "/dev/null"}
}

func TestTransfer_InvalidAddr(t *testing.T) {
	b := openNullBus(t)

	for _, addr := range []uint16{0, 0x80, 0x1FF} {
		err := b.Dev(addr).Write([]byte{0x00})
		if err == nil || !strings.Contains(err.Error(), "invalid addr") {
			t.Fatalf("addr=0x%X err=%v want invalid addr", addr, err)
		}
	}
}

func TestTransfer_EmptyIsNoop(t *testing.T) {
	b := openNullBus(t)
	if err := b.transfer(0x68, nil, nil); err != nil {
		t.Fatalf("err=%v", err)
	}
}

func TestTransfer_ClosedBusErrors(t *testing.T) {
	b := openNullBus(t)
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := b.Dev(0x68).Write([]byte{0x01}); err == nil {
		t.Fatalf("expected error on closed bus")
	}
}

func TestDev_NilBusErrors(t *testing.T) {
	var d *Dev
	if err := d.Write([]byte{0x01}); err == nil {
		t.Fatalf("expected error on nil device")
	}
}

func TestClose_Idempotent(t *testing.T) {
	b := openNullBus(t)
	if err := b.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
