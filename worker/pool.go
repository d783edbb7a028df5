// Package worker runs remote-fetch batches on a fixed pool of goroutines so
// one multi-URL ingestion cannot open an unbounded number of connections.
package worker

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"github.com/AzumiYumei/Azumi-Image-Hosting/models"
)

// Fetcher ingests a single remote URL. The ingestion pipeline implements it.
type Fetcher interface {
	FetchURL(ctx context.Context, ownerID *int64, rawURL string, tagNames []string) (*models.Image, error)
}

// Result is the per-item outcome of a batch fetch. A failed item carries its
// error; it never aborts the rest of the batch.
type Result struct {
	URL   string        `json:"url"`
	Image *models.Image `json:"image,omitempty"`
	Err   error         `json:"-"`
}

type job struct {
	ctx        context.Context
	ownerID    *int64
	url        string
	tags       []string
	resultChan chan Result
}

type Pool struct {
	workers  int
	fetcher  Fetcher
	jobQueue chan job
	wg       sync.WaitGroup

	completedJobs int64
	failedJobs    int64
}

func NewPool(workers int, fetcher Fetcher) *Pool {
	return &Pool{
		workers:  workers,
		fetcher:  fetcher,
		jobQueue: make(chan job, 100),
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	log.Printf("fetch pool started with %d workers", p.workers)
}

func (p *Pool) Stop() {
	close(p.jobQueue)
	p.wg.Wait()
	log.Println("fetch pool stopped")
}

// FetchAll fans a URL batch out to the pool and blocks until every item has
// an outcome. Results come back in input order.
func (p *Pool) FetchAll(ctx context.Context, ownerID *int64, urls []string, tagNames []string) []Result {
	channels := make([]chan Result, len(urls))
	for i, u := range urls {
		channels[i] = make(chan Result, 1)
		p.jobQueue <- job{
			ctx:        ctx,
			ownerID:    ownerID,
			url:        u,
			tags:       tagNames,
			resultChan: channels[i],
		}
	}

	results := make([]Result, len(urls))
	for i, ch := range channels {
		results[i] = <-ch
	}
	return results
}

func (p *Pool) worker(workerID int) {
	defer p.wg.Done()
	for j := range p.jobQueue {
		img, err := p.fetcher.FetchURL(j.ctx, j.ownerID, j.url, j.tags)
		if err != nil {
			atomic.AddInt64(&p.failedJobs, 1)
			log.Printf("worker %d: fetch %s failed: %v", workerID, j.url, err)
		} else {
			atomic.AddInt64(&p.completedJobs, 1)
		}
		j.resultChan <- Result{URL: j.url, Image: img, Err: err}
		close(j.resultChan)
	}
}

func (p *Pool) CompletedJobs() int64 {
	return atomic.LoadInt64(&p.completedJobs)
}

func (p *Pool) FailedJobs() int64 {
	return atomic.LoadInt64(&p.failedJobs)
}

func (p *Pool) WorkerCount() int {
	return p.workers
}

func (p *Pool) QueueSize() int {
	return len(p.jobQueue)
}

func (p *Pool) QueueCapacity() int {
	return cap(p.jobQueue)
}
