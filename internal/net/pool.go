package net

import (
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

// taskChanSize bounds how many accepted connections can sit waiting for a
// free worker before Server.Run itself starts blocking on AddTask.
const taskChanSize = 100

// workFunc is one unit of work a pool worker executes; it is handed the
// tomb so long-lived work (a connection's read loop) can observe shutdown.
type workFunc = func(t *tomb.Tomb, task any) error

// workerPool is a fixed-size pool of goroutines pulling tasks off a shared
// channel, adapted from the teacher's internal/worker.go. The teacher's
// version declared pool.tasks but never defined the AddTask method its own
// server.go called — this fills that gap.
type workerPool struct {
	n     int
	tasks chan any
}

func newWorkerPool(size int) workerPool {
	return workerPool{
		tasks: make(chan any, taskChanSize),
		n:     size,
	}
}

// AddTask enqueues a unit of work (a net.Conn) for the next free worker.
func (p *workerPool) AddTask(task any) {
	p.tasks <- task
}

// Setup starts n workers that run for the lifetime of t. Each worker serves
// tasks one after another, so a connection closing returns its worker to
// the pool rather than ending it; workers exit only when t is dying.
func (p *workerPool) Setup(t *tomb.Tomb, work workFunc) {
	log.Info().Int("workers", p.n).Msg("net: starting worker pool")
	for i := 0; i < p.n; i++ {
		t.Go(func() error {
			return p.runWorker(t, work)
		})
	}
}

func (p *workerPool) runWorker(t *tomb.Tomb, work workFunc) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case task := <-p.tasks:
			if err := work(t, task); err != nil {
				log.Error().Err(err).Msg("net: worker task failed")
			}
		}
	}
}
