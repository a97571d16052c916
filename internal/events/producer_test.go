package events

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("producer", Ordered, func() {
	Context("write", func() {
		It("writes succsessfully", func() {
			w := newTestWriter()
			kp := NewEventProducer(w, WithOutputTopic("tracker"))

			err := kp.Write(context.TODO(), JobResolvedKind, bytes.NewReader([]byte(`{"job_id":"1"}`)))
			Expect(err).To(BeNil())
			Eventually(w.Len).WithTimeout(time.Second).Should(Equal(1))

			e := w.At(0)
			Expect(e.Type).To(Equal(JobResolvedKind))
			Expect(e.Source).To(Equal(defaultSource))
			Expect(e.ID).NotTo(BeEmpty())
			Expect(w.Topic()).To(Equal("tracker"))

			err = kp.Write(context.TODO(), StudyResetKind, bytes.NewReader([]byte(`{}`)))
			Expect(err).To(BeNil())
			Eventually(w.Len).WithTimeout(time.Second).Should(Equal(2))

			Expect(kp.Close()).To(BeNil())
			Expect(w.Closed()).To(BeTrue())
		})

		It("publishes json and flushes on close", func() {
			w := newTestWriter()
			kp := NewEventProducer(w)

			for i := 0; i < 10; i++ {
				kp.Publish(context.TODO(), StudyResetKind, StudyResetEvent{StudyID: "s1", Deleted: int64(i)})
			}
			Expect(kp.Close()).To(BeNil())
			Expect(w.Len()).To(Equal(10))

			var reset StudyResetEvent
			Expect(json.Unmarshal(w.At(9).Data, &reset)).To(Succeed())
			Expect(reset.Deleted).To(Equal(int64(9)))
		})
	})

	Context("backpressure", func() {
		It("drops the oldest queued events when the writer falls behind", func() {
			w := &gatedWriter{testwriter: newTestWriter(), started: make(chan struct{}), release: make(chan struct{})}
			kp := NewEventProducer(w, WithBufferSize(2))

			kp.Publish(context.TODO(), JobResolvedKind, JobResolvedEvent{JobID: "0"})
			Eventually(w.started).WithTimeout(time.Second).Should(BeClosed())

			for _, id := range []string{"1", "2", "3"} {
				kp.Publish(context.TODO(), JobResolvedKind, JobResolvedEvent{JobID: id})
			}
			Expect(kp.queue.Len()).To(Equal(2))

			close(w.release)
			Expect(kp.Close()).To(BeNil())

			ids := []string{}
			for i := 0; i < w.Len(); i++ {
				var e JobResolvedEvent
				Expect(json.Unmarshal(w.At(i).Data, &e)).To(Succeed())
				ids = append(ids, e.JobID)
			}
			Expect(ids).To(Equal([]string{"0", "2", "3"}))
		})
	})

	Context("nats", func() {
		It("fails to connect to an unreachable server", func() {
			_, err := NewNatsWriter("nats://127.0.0.1:1")
			Expect(err).NotTo(BeNil())
		})
	})
})

type testwriter struct {
	mu       sync.Mutex
	messages []Event
	topic    string
	closed   bool
}

func newTestWriter() *testwriter {
	return &testwriter{messages: []Event{}}
}

func (t *testwriter) Write(ctx context.Context, topic string, e Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages, e)
	t.topic = topic
	return nil
}

// gatedWriter blocks its first write until release is closed.
type gatedWriter struct {
	*testwriter
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (g *gatedWriter) Write(ctx context.Context, topic string, e Event) error {
	g.once.Do(func() {
		close(g.started)
		<-g.release
	})
	return g.testwriter.Write(ctx, topic, e)
}

func (t *testwriter) Close(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *testwriter) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.messages)
}

func (t *testwriter) At(i int) Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.messages[i]
}

func (t *testwriter) Topic() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.topic
}

func (t *testwriter) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}
