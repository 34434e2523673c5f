package emailsvc

import (
	"fmt"
	"log"
	"mime/multipart"
	"net/mail"
	"net/textproto"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/denis-rodionov/school-trainer-sub000/core"
)

// SentMessages records every message that made it past rendering; tests
// inspect it. The mutex guards appends from the async sends.
var (
	SentMessages = make([]core.EmailMessage, 0)
	mu           sync.Mutex
)

// consoleService dumps rendered messages to the log instead of delivering
// them. It is the backend of choice outside production.
type consoleService struct {
	from       mail.Address
	subjPrefix string
	quiet      bool
}

var _ core.EmailService = (*consoleService)(nil)

func NewConsoleService() core.EmailService {
	return &consoleService{
		from:       core.Conf.DefaultFromEmail,
		subjPrefix: "[" + core.Conf.AppName + "] ",
	}
}

func (svc consoleService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		go svc.sendMessage(msg)
	}
}

func (svc consoleService) sendMessage(msg *core.EmailMessage) {
	if err := msg.Render(); err != nil {
		log.Fatalf("%+v", errors.Wrap(err, "rendering email"))
	}
	if !msg.HasRecipients() || !(msg.HasContent() || msg.HasAttachments()) {
		return
	}
	if !svc.quiet {
		log.Println(svc.dump(*msg))
	}
	mu.Lock()
	SentMessages = append(SentMessages, *msg)
	mu.Unlock()
}

// dump renders a MIME-ish view of the message. Nothing is delivered from
// here so the output only needs to be readable, not parseable.
func (svc consoleService) dump(msg core.EmailMessage) string {
	body := new(strings.Builder)

	fmt.Fprintf(body, "From: %s\r\n", svc.from.String())
	fmt.Fprint(body, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(body, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	fmt.Fprintf(body, "Subject: %s%s\r\n", svc.subjPrefix, msg.Subject)
	fmt.Fprintf(body, "To: %s\r\n", addressList(msg.To))
	fmt.Fprintf(body, "CC: %s\r\n", addressList(msg.Cc))
	fmt.Fprintf(body, "BCC: %s\r\n", addressList(msg.Bcc))

	w := multipart.NewWriter(body)
	contentType := "multipart/alternative"
	if msg.HasAttachments() {
		contentType = "multipart/mixed"
	}
	fmt.Fprintf(body, "Content-Type: %s; boundary=%s\r\n\r\n", contentType, w.Boundary())

	part, err := w.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/plain"}})
	if err != nil {
		log.Fatalf("%+v", errors.Wrap(err, "creating text/plain part"))
	}
	fmt.Fprintf(part, "%s\r\n", msg.TextContent)

	if msg.TemplateName != "" {
		if part, err = w.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/html"}}); err != nil {
			log.Fatalf("%+v", errors.Wrap(err, "creating text/html part"))
		}
		fmt.Fprintf(part, "%s\r\n", msg.HTMLContent)
	}

	for _, at := range msg.Attachments {
		part, err = w.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {at.ContentType},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {"attachment; filename=" + at.Filename},
		})
		if err != nil {
			log.Fatalf("%+v", errors.Wrap(err, "creating "+at.ContentType+" part"))
		}
		fmt.Fprintf(part, "%s\r\n", at.Content.String())
	}
	_ = w.Close()

	return body.String()
}

func addressList(addrs []mail.Address) string {
	strs := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		strs = append(strs, addr.String())
	}
	return strings.Join(strs, ", ")
}

type consoleServiceMock struct {
	consoleService
}

func NewConsoleServiceMock() core.EmailService {
	return &consoleServiceMock{
		consoleService: consoleService{
			from:       core.Conf.DefaultFromEmail,
			subjPrefix: "[" + core.Conf.AppName + "] ",
			quiet:      true,
		},
	}
}

// SendMessages runs synchronously so tests can assert on SentMessages
// right after the call.
func (svc *consoleServiceMock) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		svc.sendMessage(msg)
	}
}
