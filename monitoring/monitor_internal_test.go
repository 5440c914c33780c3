package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/asyncqueue/queueing"
)

var _ = Describe("Monitor", func() {
	var (
		m     *Monitor
		small *queueing.Queue[int]
		large *queueing.Queue[int]
		open  *queueing.Queue[string]
	)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		m.router().ServeHTTP(rec, req)

		return rec
	}

	BeforeEach(func() {
		ctx := context.Background()
		m = NewMonitor()

		small = queueing.MakeBuilder[int]().WithCapacity(2).Build("Small")
		Expect(small.Push(ctx, 1)).To(Succeed())
		Expect(small.Push(ctx, 2)).To(Succeed())

		large = queueing.MakeBuilder[int]().WithCapacity(10).Build("Large")
		for i := 0; i < 4; i++ {
			Expect(large.Push(ctx, i)).To(Succeed())
		}

		open = queueing.MakeBuilder[string]().Build("Open")

		m.RegisterQueue(small)
		m.RegisterQueue(large)
		m.RegisterQueue(open)
	})

	It("should refuse duplicated queue names", func() {
		Expect(func() {
			m.RegisterQueue(queueing.MakeBuilder[int]().Build("Small"))
		}).To(Panic())
	})

	It("should list queues", func() {
		rec := get("/api/list_queues")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(MatchJSON(`["Small","Large","Open"]`))
	})

	It("should report queue details", func() {
		rec := get("/api/queue/Small")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.Len()).To(BeNumerically(">", 0))
	})

	It("should report 404 for unknown queues", func() {
		rec := get("/api/queue/Missing")

		Expect(rec.Code).To(Equal(http.StatusNotFound))
	})

	It("should sort queues by percent", func() {
		rec := get("/api/hangdetector/queues")

		Expect(rec.Code).To(Equal(http.StatusOK))

		var levels []queueLevel
		Expect(json.Unmarshal(rec.Body.Bytes(), &levels)).To(Succeed())
		Expect(levels).To(HaveLen(3))
		Expect(levels[0].Queue).To(Equal("Small"))
		Expect(levels[1].Queue).To(Equal("Large"))
		Expect(levels[2].Queue).To(Equal("Open"))
	})

	It("should sort queues by level and page them", func() {
		rec := get("/api/hangdetector/queues?sort=level&limit=1&offset=0")

		var levels []queueLevel
		Expect(json.Unmarshal(rec.Body.Bytes(), &levels)).To(Succeed())
		Expect(levels).To(HaveLen(1))
		Expect(levels[0].Queue).To(Equal("Large"))
		Expect(levels[0].Level).To(Equal(4))
		Expect(levels[0].Cap).To(Equal(10))
	})

	It("should return an empty page past the end", func() {
		rec := get("/api/hangdetector/queues?offset=10")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(MatchJSON(`[]`))
	})

	It("should reject an unknown sort method", func() {
		rec := get("/api/hangdetector/queues?sort=name")

		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("should reject a malformed limit", func() {
		rec := get("/api/hangdetector/queues?limit=abc")

		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("should list progress bars", func() {
		bar := m.CreateProgressBar("Transfer", 10)
		bar.IncrementInProgress(3)
		bar.MoveInProgressToFinished(2)

		rec := get("/api/progress")

		var bars []ProgressBarSnapshot
		Expect(json.Unmarshal(rec.Body.Bytes(), &bars)).To(Succeed())
		Expect(bars).To(HaveLen(1))
		Expect(bars[0].Name).To(Equal("Transfer"))
		Expect(bars[0].Finished).To(Equal(uint64(2)))
		Expect(bars[0].InProgress).To(Equal(uint64(1)))

		m.CompleteProgressBar(bar)

		rec = get("/api/progress")
		Expect(rec.Body.String()).To(MatchJSON(`[]`))
	})

	It("should report resources", func() {
		rec := get("/api/resource")

		Expect(rec.Code).To(Equal(http.StatusOK))

		var rsp resourceRsp
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp.MemorySize).To(BeNumerically(">", 0))
	})

	It("should serve the dashboard page", func() {
		rec := get("/")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("/api/hangdetector/queues"))
	})

	DescribeTable("choosing the listen address",
		func(port int, address string) {
			Expect(NewMonitor().WithPortNumber(port).listenAddress()).
				To(Equal(address))
		},
		Entry("lowest allowed port", 1000, ":1000"),
		Entry("high port", 8080, ":8080"),
		Entry("reserved port", 999, ":0"),
		Entry("no port", 0, ":0"),
	)

	It("should serve on a random port", func() {
		url, err := m.WithPortNumber(0).StartServer()
		Expect(err).ToNot(HaveOccurred())
		defer func() {
			Expect(m.StopServer(context.Background())).To(Succeed())
		}()

		rsp, err := http.Get(url + "/api/list_queues")
		Expect(err).ToNot(HaveOccurred())
		defer rsp.Body.Close()

		Expect(rsp.StatusCode).To(Equal(http.StatusOK))
	})
})
