package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"mime/quotedprintable"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	gosmtp "github.com/emersion/go-smtp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"portfolio/backend/internal/config"
	"portfolio/backend/internal/domain"
	"portfolio/backend/internal/monitoring"
	"portfolio/backend/internal/pool"
)

// 通知结果，用作指标标签
const (
	ResultSent    = "sent"
	ResultFailed  = "failed"
	ResultDropped = "dropped"
)

// sendFunc 与 gosmtp.SendMail 签名一致，测试时替换
type sendFunc func(addr string, a sasl.Client, from string, to []string, r io.Reader) error

// Notifier 新投稿邮件通知
//
// 实现 service.SubmissionListener。发送在协程池中异步执行，
// 队列已满时丢弃通知，不影响投稿请求。
type Notifier struct {
	cfg     config.NotifyConfig
	pool    *pool.WorkerPool
	metrics *monitoring.Metrics
	logger  *zap.Logger
	send    sendFunc
	now     func() time.Time
}

// New 创建邮件通知器
func New(cfg config.NotifyConfig, workers *pool.WorkerPool, metrics *monitoring.Metrics, logger *zap.Logger) *Notifier {
	return &Notifier{
		cfg:     cfg,
		pool:    workers,
		metrics: metrics,
		logger:  logger,
		send:    gosmtp.SendMail,
		now:     time.Now,
	}
}

// OnSubmissionEvent 仅对新建投稿发送通知
func (n *Notifier) OnSubmissionEvent(event domain.SubmissionEvent) {
	if event.Type != domain.SubmissionCreated || event.Submission == nil {
		return
	}

	msg := n.compose(*event.Submission)
	id := event.ID
	ok := n.pool.TrySubmit(func(ctx context.Context) {
		n.deliver(ctx, id, msg)
	})
	if !ok {
		n.metrics.RecordNotification(ResultDropped)
		n.logger.Warn("notification queue full, dropping notification",
			zap.String("submission_id", id),
		)
	}
}

func (n *Notifier) deliver(ctx context.Context, id string, msg []byte) {
	if ctx.Err() != nil {
		n.metrics.RecordNotification(ResultDropped)
		return
	}

	var auth sasl.Client
	if n.cfg.Username != "" {
		auth = sasl.NewPlainClient("", n.cfg.Username, n.cfg.Password)
	}

	if err := n.send(n.cfg.SMTPAddr, auth, n.cfg.From, n.cfg.To, bytes.NewReader(msg)); err != nil {
		n.metrics.RecordNotification(ResultFailed)
		n.logger.Error("failed to send submission notification",
			zap.String("submission_id", id),
			zap.String("smtp_addr", n.cfg.SMTPAddr),
			zap.Error(err),
		)
		return
	}

	n.metrics.RecordNotification(ResultSent)
	n.logger.Debug("submission notification sent", zap.String("submission_id", id))
}

// compose 生成 UTF-8 纯文本邮件
func (n *Notifier) compose(s domain.Submission) []byte {
	var buf bytes.Buffer

	subject := mime.QEncoding.Encode("utf-8", "New contact submission from "+headerValue(s.Name))

	fmt.Fprintf(&buf, "From: %s\r\n", headerValue(n.cfg.From))
	fmt.Fprintf(&buf, "To: %s\r\n", headerValue(strings.Join(n.cfg.To, ", ")))
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	fmt.Fprintf(&buf, "Date: %s\r\n", n.now().Format(time.RFC1123Z))
	fmt.Fprintf(&buf, "Message-ID: <%s@portfolio>\r\n", uuid.NewString())
	if s.Email != "" {
		fmt.Fprintf(&buf, "Reply-To: %s\r\n", headerValue(s.Email))
	}
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	buf.WriteString("Content-Transfer-Encoding: quoted-printable\r\n")
	buf.WriteString("\r\n")

	qp := quotedprintable.NewWriter(&buf)
	fmt.Fprintf(qp, "Name: %s\r\nEmail: %s\r\nReceived: %s\r\nID: %s\r\n\r\n%s\r\n",
		s.Name, s.Email, s.CreatedAt, s.ID, s.Message)
	_ = qp.Close()

	return buf.Bytes()
}

// headerValue 去除换行，防止头部注入
func headerValue(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}
