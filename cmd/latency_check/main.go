// Command latency_check measures how long the geodata service takes to answer
// the three reads the atlas issues, including GeoJSON decoding.
package main

import (
	"context"
	"flag"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/paulmach/orb/geojson"

	"fraatlas/pkg/geodata"
	"fraatlas/pkg/request"
	"fraatlas/pkg/tracker"
)

type sample struct {
	took     time.Duration
	features int
	err      error
}

type summary struct {
	Requests int
	Errors   int
	Features int // of the last successful answer
	Min      time.Duration
	Avg      time.Duration
	P95      time.Duration
	Max      time.Duration
}

type readFunc func(ctx context.Context) (*geojson.FeatureCollection, error)

func main() {
	baseURL := flag.String("url", "http://127.0.0.1:5000/api", "Base URL of the geodata service")
	state := flag.String("state", "Odisha", "State used for the district list")
	district := flag.String("district", "Mayurbhanj", "District used for the parcel dataset")
	n := flag.Int("n", 20, "Number of requests per endpoint")
	concurrency := flag.Int("c", 1, "Concurrency level (1 = sequential)")
	timeout := flag.Duration("timeout", 30*time.Second, "Per-request timeout")
	flag.Parse()

	tr := tracker.New()
	client := geodata.NewClient(*baseURL, request.New(*timeout, tr, ""))

	reads := []struct {
		name string
		read readFunc
	}{
		{geodata.EndpointStates, client.FetchRootCollection},
		{geodata.EndpointDistricts + "/" + *state, func(ctx context.Context) (*geojson.FeatureCollection, error) {
			return client.FetchChildCollection(ctx, *state)
		}},
		{geodata.EndpointFRAParcels + "/" + *district, func(ctx context.Context) (*geojson.FeatureCollection, error) {
			return client.FetchLeafDataset(ctx, *district)
		}},
	}

	fmt.Printf("Benchmarking %s with N=%d, C=%d\n\n", *baseURL, *n, *concurrency)

	for _, r := range reads {
		start := time.Now()
		s := summarize(benchmark(context.Background(), r.read, *n, *concurrency))
		elapsed := time.Since(start)

		fmt.Printf("Endpoint: %s\n", r.name)
		if s.Errors > 0 {
			fmt.Printf("  Errors: %d/%d\n", s.Errors, s.Requests)
		}
		if s.Errors == s.Requests {
			fmt.Println("  No successful requests.")
			fmt.Println()
			continue
		}
		fmt.Printf("  Requests: %d | Time: %v | RPS: %.2f | Features: %d\n",
			s.Requests, elapsed.Round(time.Millisecond), float64(s.Requests)/elapsed.Seconds(), s.Features)
		fmt.Printf("  Latency: Min %v | Avg %v | P95 %v | Max %v\n\n", s.Min, s.Avg, s.P95, s.Max)
	}

	for endpoint, st := range tr.Snapshot() {
		fmt.Printf("%-12s success=%d not_found=%d errors=%d\n", endpoint, st.Success, st.NotFound, st.Failures)
	}
}

func benchmark(ctx context.Context, read readFunc, n, concurrency int) []sample {
	if concurrency < 1 {
		concurrency = 1
	}
	results := make([]sample, n)
	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			start := time.Now()
			fc, err := read(ctx)
			s := sample{took: time.Since(start), err: err}
			if fc != nil {
				s.features = len(fc.Features)
			}
			results[idx] = s
		}(i)
	}

	wg.Wait()
	return results
}

func summarize(samples []sample) summary {
	s := summary{Requests: len(samples)}

	var durations []time.Duration
	for _, r := range samples {
		if r.err != nil {
			s.Errors++
			continue
		}
		durations = append(durations, r.took)
		s.Features = r.features
	}
	if len(durations) == 0 {
		return s
	}

	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}
	s.Min = durations[0]
	s.Max = durations[len(durations)-1]
	s.Avg = sum / time.Duration(len(durations))
	s.P95 = durations[(len(durations)*95-1)/100]
	return s
}
