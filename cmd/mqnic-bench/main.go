// Command mqnic-bench drives one poll thread per queue against an
// initialized NIC interface and prints throughput every 10MB received.
// It is a benchmark consumer of the driver, not part of the core engine.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/mqnic-project/mqnicgo"
	"github.com/mqnic-project/mqnicgo/internal/bufpool"
	"github.com/mqnic-project/mqnicgo/internal/logging"
	"golang.org/x/sys/unix"
)

func main() {
	pciAddr := flag.String("pci", "", "PCI bus address of the interface to bind, e.g. 0000:01:00.0")
	rxQueues := flag.Int("rx-queues", 1, "number of RX queues")
	txQueues := flag.Int("tx-queues", 1, "number of TX queues")
	bypass := flag.Bool("bypass", false, "use bypass-mode completion polling instead of exact mode")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	if *pciAddr == "" {
		fmt.Fprintln(os.Stderr, "usage: mqnic-bench -pci <bus addr> [-rx-queues N] [-tx-queues N] [-bypass]")
		os.Exit(1)
	}

	if *verbose {
		logging.SetDefault(logging.NewLogger(&logging.Config{Level: logging.LevelDebug, Output: os.Stderr}))
	}

	// Binding to a real PCI device, mapping BAR0, and setting up an IOMMU
	// domain are external collaborators this CLI does not implement; a
	// production build wires a VFIO-backed dma.Allocator and BAR0 pointer
	// here instead of the in-process mock used for this reference build.
	base, size := mqnicgo.NewMockBar0(0x8000)
	alloc := mqnicgo.NewMockAllocator(0x10000000)

	params := mqnicgo.DefaultParams()
	params.RxQueues = *rxQueues
	params.TxQueues = *txQueues
	params.BypassMode = *bypass
	params.CPUAffinity = make([]int, *rxQueues)
	for i := range params.CPUAffinity {
		params.CPUAffinity[i] = i
	}

	dev, err := mqnicgo.Init(base, size, alloc, params, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init failed: %v\n", err)
		os.Exit(1)
	}
	defer dev.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var stop atomic.Bool
	go func() {
		<-sigCh
		stop.Store(true)
	}()

	for i := 0; i < params.RxQueues; i++ {
		cpu := -1
		if i < len(params.CPUAffinity) {
			cpu = params.CPUAffinity[i]
		}
		go pollQueue(dev, i, cpu, &stop)
	}

	<-waitStopped(&stop)
	fmt.Println("shutting down")
}

func waitStopped(stop *atomic.Bool) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		for !stop.Load() {
			time.Sleep(100 * time.Millisecond)
		}
		close(done)
	}()
	return done
}

func pollQueue(dev *mqnicgo.Device, qid int, cpu int, stop *atomic.Bool) {
	runtime.LockOSThread()
	if cpu >= 0 {
		var set unix.CPUSet
		set.Set(cpu)
		if err := unix.SchedSetaffinity(0, &set); err != nil {
			logging.Warn("failed to pin polling thread", "queue", qid, "cpu", cpu, "err", err)
		}
	}

	out := make([]*bufpool.PktBuf, 64)
	var totalBytes uint64
	var nextReport uint64 = 10 << 20

	for !stop.Load() {
		n := dev.RxBatch(qid, out)
		for i := 0; i < n; i++ {
			totalBytes += uint64(out[i].Size)
			out[i].Free()
		}
		if totalBytes >= nextReport {
			fmt.Printf("queue %d: %d MB received\n", qid, totalBytes>>20)
			nextReport += 10 << 20
		}
	}
}
