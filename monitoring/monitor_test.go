package monitoring

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/regslave/device"
	"github.com/sarchlab/regslave/packet"
	"github.com/sarchlab/regslave/regfile"
	"github.com/sarchlab/regslave/sim/timing"
)

var _ = Describe("Monitor", func() {
	var (
		m      *Monitor
		dev    *device.Comp
		engine *timing.SerialEngine
		server *httptest.Server
	)

	get := func(path string) (int, []byte) {
		rsp, err := http.Get(server.URL + path)
		Expect(err).NotTo(HaveOccurred())
		defer rsp.Body.Close()

		body, err := io.ReadAll(rsp.Body)
		Expect(err).NotTo(HaveOccurred())

		return rsp.StatusCode, body
	}

	BeforeEach(func() {
		dev = device.MakeBuilder().WithFIFODepth(16).Build("Dev")
		engine = timing.NewSerialEngine()

		m = NewMonitor()
		m.profileDuration = 10 * time.Millisecond
		m.RegisterEngine(engine)
		m.RegisterDevice(dev)
		m.RegisterDevice(device.MakeBuilder().WithFIFODepth(4).Build("Spare"))

		server = httptest.NewServer(m.Router())
	})

	AfterEach(func() {
		server.Close()
	})

	It("should list devices", func() {
		code, body := get("/api/list_components")

		Expect(code).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(`["Dev","Spare"]`))
	})

	It("should report the current cycle", func() {
		code, body := get("/api/now")

		Expect(code).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(`{"now":0}`))
	})

	It("should pause and continue the engine", func() {
		code, _ := get("/api/pause")
		Expect(code).To(Equal(http.StatusOK))

		code, _ = get("/api/continue")
		Expect(code).To(Equal(http.StatusOK))
	})

	It("should answer 503 without an engine", func() {
		m.engine = nil

		code, _ := get("/api/now")

		Expect(code).To(Equal(http.StatusServiceUnavailable))
	})

	It("should list registers without popping RX_DATA", func() {
		dev.FeedPackets(packet.MustEncode(
			packet.Frame{Type: 2, Payload: []byte{0x10}}))

		code, body := get("/api/registers/Dev")
		Expect(code).To(Equal(http.StatusOK))

		var regs []registerRsp
		Expect(json.Unmarshal(body, &regs)).To(Succeed())
		Expect(regs).To(HaveLen(len(regfile.Map())))
		Expect(regs[regfile.RxData]).To(Equal(registerRsp{
			Name:    "RX_DATA",
			Index:   regfile.RxData,
			Address: 16,
			Access:  "RO",
			Value:   0x10,
		}))
		Expect(dev.Flow().RxCount()).To(Equal(1))
	})

	It("should answer 404 for unknown devices", func() {
		code, _ := get("/api/registers/Nope")
		Expect(code).To(Equal(http.StatusNotFound))

		code, _ = get("/api/component/Nope")
		Expect(code).To(Equal(http.StatusNotFound))
	})

	It("should serialize a device", func() {
		code, body := get("/api/component/Dev")

		Expect(code).To(Equal(http.StatusOK))
		Expect(body).NotTo(BeEmpty())
	})

	It("should reject malformed field requests", func() {
		code, _ := get("/api/field/" + url.PathEscape("{not json"))

		Expect(code).To(Equal(http.StatusBadRequest))
	})

	Context("when listing FIFOs", func() {
		BeforeEach(func() {
			dev.FeedPackets(packet.MustEncode(
				packet.Frame{Type: 1, Payload: []byte{1, 2, 3, 4}}))
			dev.WriteRegister(regfile.TxData, 7)
		})

		It("should sort by level", func() {
			code, body := get("/api/fifos?sort=level&limit=2")

			Expect(code).To(Equal(http.StatusOK))
			Expect(body).To(MatchJSON(`[
				{"fifo":"Dev.RxFIFO","level":4,"cap":16},
				{"fifo":"Dev.TxFIFO","level":1,"cap":16}
			]`))
		})

		It("should sort by percent", func() {
			code, body := get("/api/fifos?offset=1")

			Expect(code).To(Equal(http.StatusOK))
			Expect(body).To(MatchJSON(`[
				{"fifo":"Dev.TxFIFO","level":1,"cap":16},
				{"fifo":"Spare.RxFIFO","level":0,"cap":4},
				{"fifo":"Spare.TxFIFO","level":0,"cap":4}
			]`))
		})

		It("should reject bad parameters", func() {
			code, _ := get("/api/fifos?sort=name")
			Expect(code).To(Equal(http.StatusBadRequest))

			code, _ = get("/api/fifos?limit=x")
			Expect(code).To(Equal(http.StatusBadRequest))

			code, _ = get("/api/fifos?offset=-1")
			Expect(code).To(Equal(http.StatusBadRequest))
		})
	})

	It("should list progress bars until they complete", func() {
		bar := m.CreateProgressBar("replay", 10)
		bar.IncrementInProgress(3)
		bar.MoveInProgressToFinished(2)

		code, body := get("/api/progress")
		Expect(code).To(Equal(http.StatusOK))

		var bars []map[string]any
		Expect(json.Unmarshal(body, &bars)).To(Succeed())
		Expect(bars).To(HaveLen(1))
		Expect(bars[0]["name"]).To(Equal("replay"))
		Expect(bars[0]["finished"]).To(BeEquivalentTo(2))
		Expect(bars[0]["in_progress"]).To(BeEquivalentTo(1))

		m.CompleteProgressBar(bar)

		_, body = get("/api/progress")
		Expect(body).To(MatchJSON(`[]`))
	})

	It("should report resources", func() {
		code, body := get("/api/resource")

		Expect(code).To(Equal(http.StatusOK))
		Expect(string(body)).To(ContainSubstring("memory_size"))
	})

	It("should collect a profile", func() {
		code, _ := get("/api/profile")

		Expect(code).To(Equal(http.StatusOK))
	})

	It("should serve the index page", func() {
		code, body := get("/")

		Expect(code).To(Equal(http.StatusOK))
		Expect(string(body)).To(HavePrefix("<!DOCTYPE html>"))
	})

	It("should keep the port number above 1000", func() {
		Expect(NewMonitor().WithPortNumber(80).portNumber).To(Equal(0))
		Expect(NewMonitor().WithPortNumber(8080).portNumber).To(Equal(8080))
	})
})
