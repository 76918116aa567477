package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/julienschmidt/httprouter"
)

// StatusFunc returns a JSON-marshalable snapshot of acquisition state.
type StatusFunc func() interface{}

type Server struct {
	images          map[string]map[string]*ImageContainer
	mu              sync.RWMutex
	port            int
	srv             *http.Server
	producerBuckets map[string]map[string]Producer
	updateInterval  time.Duration
	enabled         bool
	lastViewed      map[string]time.Time
	statusFunc      StatusFunc
}

func NewServer(port int, updateInterval time.Duration) *Server {
	return &Server{
		images:          make(map[string]map[string]*ImageContainer),
		producerBuckets: make(map[string]map[string]Producer),
		port:            port,
		lastViewed:      make(map[string]time.Time),
		srv:             &http.Server{Addr: fmt.Sprintf(":%d", port)},
		updateInterval:  updateInterval,
		enabled:         true,
	}
}

func (s *Server) Enable(enable bool) {
	s.mu.Lock()
	s.enabled = enable
	s.mu.Unlock()
}

// SetStatusFunc installs the snapshot callback behind GET /status.
func (s *Server) SetStatusFunc(f StatusFunc) {
	s.mu.Lock()
	s.statusFunc = f
	s.mu.Unlock()
}

// Register adds a plot producer to a named bucket, one bucket per view page.
func (s *Server) Register(bucket string, p Producer) {
	s.mu.Lock()
	b, ok := s.producerBuckets[bucket]
	if !ok {
		b = make(map[string]Producer)
		s.producerBuckets[bucket] = b
	}
	b[p.Name()] = p
	s.mu.Unlock()
}

func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}

// renderLoop refreshes plot images for buckets that were viewed recently.
func (s *Server) renderLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.updateInterval):
			if !s.enabled {
				continue
			}

			s.mu.Lock()
			buckets := s.producerBuckets
			s.mu.Unlock()
			var wg sync.WaitGroup

			for bucketName, bucket := range buckets {
				s.mu.Lock()
				lastViewed := s.lastViewed[bucketName]
				s.mu.Unlock()
				if time.Since(lastViewed) >= time.Second {
					continue
				}
				for _, producer := range bucket {
					wg.Add(1)
					go func(bucket string, p Producer) {
						defer wg.Done()

						s.mu.Lock()
						img := p.GetImage()
						if img != nil {
							mb, ok := s.images[bucket]
							if !ok {
								mb = make(map[string]*ImageContainer)
								s.images[bucket] = mb
							}
							mb[img.name] = img
						}
						s.mu.Unlock()
					}(bucketName, producer)
				}
			}
			wg.Wait()
		}
	}
}

func (s *Server) Run(ctx context.Context) error {
	go s.renderLoop(ctx)

	handler := httprouter.New()
	handler.GET("/", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var key string
		s.mu.RLock()
		for name := range s.producerBuckets {
			key = name
			break
		}
		defer s.mu.RUnlock()

		w.Header().Set("Location", url.PathEscape(fmt.Sprintf("/view/%s", key)))
		w.WriteHeader(http.StatusFound)
	})

	handler.GET("/status", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		s.mu.RLock()
		statusFunc := s.statusFunc
		s.mu.RUnlock()

		if statusFunc == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.Encode(statusFunc())
	})

	handler.GET("/view/:bucket", s.handleView)

	handler.GET("/img/:bucket/:img", func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		bucketName := params.ByName("bucket")

		s.mu.Lock()
		s.lastViewed[bucketName] = time.Now()
		s.mu.Unlock()

		imgName := params.ByName("img")
		var img *ImageContainer
		var ok bool
		func() {
			s.mu.RLock()
			defer s.mu.RUnlock()
			var bucket map[string]*ImageContainer
			bucket, ok = s.images[bucketName]
			if !ok {
				return
			}
			img, ok = bucket[imgName]
		}()

		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		w.Header().Add("Content-Type", "image/png")
		w.Write(img.data)
	})

	s.srv.Handler = handler

	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	bucket := params.ByName("bucket")

	itemsForBucket, ok := s.producerBuckets[bucket]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	s.mu.Lock()
	s.lastViewed[bucket] = time.Now()
	s.mu.Unlock()

	// Give the render loop one cycle so images exist on first view.
	time.Sleep(s.updateInterval)

	s.mu.RLock()
	defer s.mu.RUnlock()

	w.Header().Add("Content-Type", "text/html")
	w.Write([]byte(`<html><head><title>Biostream Monitor</title></head>`))

	w.Write([]byte(fmt.Sprintf(`
	<script type="text/javascript">
		var toggleRefresh = true;
		function toggleOn() {
			toggleRefresh = !toggleRefresh;
		}

		function changeBucket() {
			var val = document.getElementById('bucketSelector').value;
			window.location.href = '/view/' + val;
		}
		window.onload = function() {
			for (var i = 0; i < %d; i++) {
				var img = document.getElementById('graph-' + i);
				setInterval(function(image) {
					if (toggleRefresh) {
						image.src = image.src.split("?")[0] + "?" + new Date().getTime();
					}
				}, %d, img);
			}
		}
	</script>`, len(itemsForBucket), s.updateInterval.Milliseconds())))
	w.Write([]byte(`<body style='background-color: black'>`))

	keys := make([]string, 0, len(s.producerBuckets))
	for key := range s.producerBuckets {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	w.Write([]byte(`<select id="bucketSelector" onchange="changeBucket()">`))
	for _, bucketName := range keys {
		selected := ""
		if bucketName == bucket {
			selected = " selected"
		}
		w.Write([]byte(fmt.Sprintf(`<option value="%s"%s>%s</option>`, bucketName, selected, bucketName)))
	}
	w.Write([]byte(`</select>`))
	w.Write([]byte(`<button onclick="toggleOn()">Refresh?</button>`))

	keys = make([]string, 0, len(itemsForBucket))
	for key := range itemsForBucket {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	w.Write([]byte(`<div style="display: flex; flex-direction: row; flex-wrap: wrap">`))
	for idx, key := range keys {
		w.Write([]byte(fmt.Sprintf(`<div><img id="graph-%d"
		src="/img/%s/%s?%d" />`, idx, bucket, key, time.Now().UnixMicro())))
		w.Write([]byte("</div>"))
	}
	w.Write([]byte(`</div>`))

	w.Write([]byte(`</body></html>`))
}
