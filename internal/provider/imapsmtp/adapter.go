package imapsmtp

import (
	"bytes"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/google/uuid"
	"github.com/inbox-agent/core/internal/database/models"
	"github.com/inbox-agent/core/internal/provider"
)

const (
	connectionTimeout = 10 * time.Second
	commandTimeout    = 2 * time.Minute

	inboxFolder   = "INBOX"
	draftsFolder  = "Drafts"
	archiveFolder = "Archive"
)

// loginAuth implements smtp.Auth for LOGIN authentication. Some providers
// reject PLAIN and only offer LOGIN.
type loginAuth struct {
	username, password string
}

func newLoginAuth(username, password string) smtp.Auth {
	return &loginAuth{username, password}
}

func (a *loginAuth) Start(server *smtp.ServerInfo) (string, []byte, error) {
	return "LOGIN", []byte{}, nil
}

func (a *loginAuth) Next(fromServer []byte, more bool) ([]byte, error) {
	if more {
		switch string(fromServer) {
		case "Username:", "username:":
			return []byte(a.username), nil
		case "Password:", "password:":
			return []byte(a.password), nil
		default:
			decoded, err := base64.StdEncoding.DecodeString(string(fromServer))
			if err == nil {
				switch strings.ToLower(string(decoded)) {
				case "username:", "username":
					return []byte(a.username), nil
				case "password:", "password":
					return []byte(a.password), nil
				}
			}
			return nil, fmt.Errorf("unexpected server challenge: %s", fromServer)
		}
	}
	return nil, nil
}

// Adapter binds the engine's provider surface to a plain IMAP/SMTP account.
// Messages are identified by their Message-ID header; threads by the root
// Message-ID of the reference chain. Labels map to IMAP keywords, so a
// label's id and name are the same string.
type Adapter struct {
	account  *models.EmailAccount
	password string
}

// New creates a provider adapter for the account with its decrypted password
func New(account *models.EmailAccount, password string) *Adapter {
	return &Adapter{account: account, password: password}
}

// connect establishes an authenticated IMAP connection
func (a *Adapter) connect() (*client.Client, error) {
	addr := fmt.Sprintf("%s:%d", a.account.IMAPHost, a.account.IMAPPort)
	dialer := &net.Dialer{Timeout: connectionTimeout}

	var c *client.Client
	if a.account.UseSSL {
		tlsConfig := &tls.Config{ServerName: a.account.IMAPHost}
		conn, err := tls.DialWithDialer(dialer, "tcp", addr, tlsConfig)
		if err != nil {
			return nil, fmt.Errorf("imap dial: %w", err)
		}
		c, err = client.New(conn)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("imap handshake: %w", err)
		}
	} else {
		conn, err := dialer.Dial("tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("imap dial: %w", err)
		}
		c, err = client.New(conn)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("imap handshake: %w", err)
		}
	}

	c.Timeout = commandTimeout

	if err := c.Login(a.account.Username, a.password); err != nil {
		c.Logout()
		return nil, fmt.Errorf("imap login: %w", err)
	}
	return c, nil
}

// searchMessage finds the sequence numbers of a message by Message-ID in the
// currently selected mailbox
func searchMessage(c *client.Client, messageID string) ([]uint32, error) {
	criteria := imap.NewSearchCriteria()
	criteria.Header.Add("Message-Id", messageID)
	return c.Search(criteria)
}

// searchThread finds every message of a thread in the currently selected
// mailbox: the root message plus everything referencing it
func searchThread(c *client.Client, threadID string) (*imap.SeqSet, error) {
	root := imap.NewSearchCriteria()
	root.Header.Add("Message-Id", threadID)
	refs := imap.NewSearchCriteria()
	refs.Header.Add("References", threadID)

	criteria := imap.NewSearchCriteria()
	criteria.Or = [][2]*imap.SearchCriteria{{root, refs}}

	ids, err := c.Search(criteria)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)
	return seqset, nil
}

// GetMessage fetches a message's envelope from the inbox
func (a *Adapter) GetMessage(id string) (*provider.Message, error) {
	c, err := a.connect()
	if err != nil {
		return nil, err
	}
	defer c.Logout()

	if _, err := c.Select(inboxFolder, true); err != nil {
		return nil, err
	}

	ids, err := searchMessage(c, id)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, provider.ErrMessageNotFound
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(ids[0])

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqset, []imap.FetchItem{imap.FetchEnvelope}, messages)
	}()

	var fetched *imap.Message
	for msg := range messages {
		fetched = msg
	}
	if err := <-done; err != nil {
		return nil, err
	}
	if fetched == nil || fetched.Envelope == nil {
		return nil, provider.ErrMessageNotFound
	}

	return envelopeToMessage(fetched.Envelope), nil
}

// envelopeToMessage converts an IMAP envelope into the engine's message type
func envelopeToMessage(env *imap.Envelope) *provider.Message {
	msg := &provider.Message{
		ID:       env.MessageId,
		ThreadID: env.MessageId,
		Subject:  env.Subject,
		Date:     env.Date,
	}
	if env.InReplyTo != "" {
		msg.ThreadID = env.InReplyTo
	}
	if len(env.From) > 0 {
		msg.From = env.From[0].Address()
	}
	for _, addr := range env.To {
		msg.To = append(msg.To, addr.Address())
	}
	for _, addr := range env.Cc {
		msg.CC = append(msg.CC, addr.Address())
	}
	return msg
}

// ArchiveThread moves every inbox message of the thread to the archive folder
func (a *Adapter) ArchiveThread(threadID, ownerEmail string) error {
	return a.moveThread(threadID, archiveFolder, true)
}

// MarkReadThread sets or clears the seen flag on the thread's inbox messages
func (a *Adapter) MarkReadThread(threadID string, read bool) error {
	c, err := a.connect()
	if err != nil {
		return err
	}
	defer c.Logout()

	if _, err := c.Select(inboxFolder, false); err != nil {
		return err
	}
	seqset, err := searchThread(c, threadID)
	if err != nil {
		return err
	}
	if seqset == nil {
		return nil
	}

	var op imap.FlagsOp = imap.AddFlags
	if !read {
		op = imap.RemoveFlags
	}
	item := imap.FormatFlagsOp(op, true)
	return c.Store(seqset, item, []interface{}{imap.SeenFlag}, nil)
}

// LabelMessage stores a keyword flag on the message
func (a *Adapter) LabelMessage(req provider.LabelRequest) error {
	label := req.LabelID
	if label == "" {
		label = req.LabelName
	}
	if label == "" {
		return provider.ErrLabelNotFound
	}

	c, err := a.connect()
	if err != nil {
		return err
	}
	defer c.Logout()

	if _, err := c.Select(inboxFolder, false); err != nil {
		return err
	}
	ids, err := searchMessage(c, req.MessageID)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return provider.ErrMessageNotFound
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)
	item := imap.FormatFlagsOp(imap.AddFlags, true)
	return c.Store(seqset, item, []interface{}{label}, nil)
}

// GetLabelByName resolves a label. IMAP keywords carry no separate id, so the
// name doubles as the id.
func (a *Adapter) GetLabelByName(name string) (*provider.Label, error) {
	if name == "" {
		return nil, provider.ErrLabelNotFound
	}
	return &provider.Label{ID: name, Name: name}, nil
}

// RemoveThreadLabels clears keyword flags from every message of the thread
func (a *Adapter) RemoveThreadLabels(threadID string, labelIDs []string) error {
	if len(labelIDs) == 0 {
		return nil
	}

	c, err := a.connect()
	if err != nil {
		return err
	}
	defer c.Logout()

	if _, err := c.Select(inboxFolder, false); err != nil {
		return err
	}
	seqset, err := searchThread(c, threadID)
	if err != nil {
		return err
	}
	if seqset == nil {
		return nil
	}

	flags := make([]interface{}, 0, len(labelIDs))
	for _, id := range labelIDs {
		flags = append(flags, id)
	}
	item := imap.FormatFlagsOp(imap.RemoveFlags, true)
	return c.Store(seqset, item, flags, nil)
}

// GetOrCreateFolderIDByName resolves a mailbox, creating it when missing.
// The mailbox name is its id.
func (a *Adapter) GetOrCreateFolderIDByName(name string) (string, error) {
	c, err := a.connect()
	if err != nil {
		return "", err
	}
	defer c.Logout()

	mailboxes := make(chan *imap.MailboxInfo, 20)
	done := make(chan error, 1)
	go func() {
		done <- c.List("", "*", mailboxes)
	}()

	found := false
	for mb := range mailboxes {
		if mb.Name == name {
			found = true
		}
	}
	if err := <-done; err != nil {
		return "", err
	}

	if !found {
		if err := c.Create(name); err != nil {
			return "", fmt.Errorf("create mailbox %q: %w", name, err)
		}
	}
	return name, nil
}

// MoveThreadToFolder moves the thread's inbox messages into the folder
func (a *Adapter) MoveThreadToFolder(threadID, ownerEmail, folderID string) error {
	return a.moveThread(threadID, folderID, false)
}

// moveThread copies the thread's inbox messages to the destination, flags the
// originals deleted and expunges. With ensure set the destination mailbox is
// created when missing.
func (a *Adapter) moveThread(threadID, dest string, ensure bool) error {
	c, err := a.connect()
	if err != nil {
		return err
	}
	defer c.Logout()

	if ensure {
		if err := ensureMailbox(c, dest); err != nil {
			return err
		}
	}

	if _, err := c.Select(inboxFolder, false); err != nil {
		return err
	}
	seqset, err := searchThread(c, threadID)
	if err != nil {
		return err
	}
	if seqset == nil {
		return nil
	}

	if err := c.Copy(seqset, dest); err != nil {
		return fmt.Errorf("copy to %q: %w", dest, err)
	}
	item := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := c.Store(seqset, item, []interface{}{imap.DeletedFlag}, nil); err != nil {
		return err
	}
	return c.Expunge(nil)
}

func ensureMailbox(c *client.Client, name string) error {
	mailboxes := make(chan *imap.MailboxInfo, 20)
	done := make(chan error, 1)
	go func() {
		done <- c.List("", name, mailboxes)
	}()
	found := false
	for mb := range mailboxes {
		if mb.Name == name {
			found = true
		}
	}
	if err := <-done; err != nil {
		return err
	}
	if found {
		return nil
	}
	return c.Create(name)
}

// DraftEmail appends a reply draft to the drafts mailbox and returns its
// Message-ID as the draft id
func (a *Adapter) DraftEmail(msg *provider.Message, args provider.DraftArgs, ownerEmail string) (string, error) {
	c, err := a.connect()
	if err != nil {
		return "", err
	}
	defer c.Logout()

	if err := ensureMailbox(c, draftsFolder); err != nil {
		return "", err
	}

	draftID := generateMessageID(a.account.Email)
	to := args.To
	if to == "" && msg != nil {
		to = msg.From
	}
	subject := args.Subject
	if subject == "" && msg != nil {
		subject = "Re: " + strings.TrimPrefix(msg.Subject, "Re: ")
	}

	content := buildMessageContent(buildArgs{
		fromName:  a.account.DisplayName,
		fromAddr:  a.account.Email,
		to:        to,
		cc:        args.CC,
		bcc:       args.BCC,
		subject:   subject,
		body:      args.Content,
		messageID: draftID,
		inReplyTo: messageIDOf(msg),
	})

	literal := bytes.NewBufferString(content)
	if err := c.Append(draftsFolder, []string{imap.DraftFlag}, time.Now(), literal); err != nil {
		return "", fmt.Errorf("append draft: %w", err)
	}
	return draftID, nil
}

func messageIDOf(msg *provider.Message) string {
	if msg == nil {
		return ""
	}
	return msg.ID
}

// DeleteDraft removes a draft from the drafts mailbox by Message-ID
func (a *Adapter) DeleteDraft(draftID string) error {
	c, err := a.connect()
	if err != nil {
		return err
	}
	defer c.Logout()

	if _, err := c.Select(draftsFolder, false); err != nil {
		return provider.ErrDraftNotFound
	}
	ids, err := searchMessage(c, draftID)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return provider.ErrDraftNotFound
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)
	item := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := c.Store(seqset, item, []interface{}{imap.DeletedFlag}, nil); err != nil {
		return err
	}
	return c.Expunge(nil)
}

// SendDraft fetches the draft's raw content, submits it via SMTP to the
// recipients named in its headers, then deletes the draft
func (a *Adapter) SendDraft(draftID string) error {
	raw, err := a.fetchDraft(draftID)
	if err != nil {
		return err
	}

	entity, err := message.Read(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("parse draft: %w", err)
	}
	recipients := headerAddresses(entity, "To")
	recipients = append(recipients, headerAddresses(entity, "Cc")...)
	recipients = append(recipients, headerAddresses(entity, "Bcc")...)
	if len(recipients) == 0 {
		return fmt.Errorf("draft %s has no recipients", draftID)
	}

	if err := a.sendSMTP(recipients, string(raw)); err != nil {
		return err
	}
	return a.DeleteDraft(draftID)
}

// fetchDraft returns the raw content of a draft by Message-ID
func (a *Adapter) fetchDraft(draftID string) ([]byte, error) {
	c, err := a.connect()
	if err != nil {
		return nil, err
	}
	defer c.Logout()

	if _, err := c.Select(draftsFolder, true); err != nil {
		return nil, provider.ErrDraftNotFound
	}
	ids, err := searchMessage(c, draftID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, provider.ErrDraftNotFound
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(ids[0])
	section := &imap.BodySectionName{}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqset, []imap.FetchItem{section.FetchItem()}, messages)
	}()

	var raw []byte
	for msg := range messages {
		if body := msg.GetBody(section); body != nil {
			buf := new(bytes.Buffer)
			if _, err := buf.ReadFrom(body); err == nil {
				raw = buf.Bytes()
			}
		}
	}
	if err := <-done; err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, provider.ErrDraftNotFound
	}
	return raw, nil
}

func headerAddresses(entity *message.Entity, field string) []string {
	value := entity.Header.Get(field)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	addrs := make([]string, 0, len(parts))
	for _, p := range parts {
		addr := strings.TrimSpace(p)
		if i := strings.LastIndex(addr, "<"); i >= 0 {
			addr = strings.TrimSuffix(addr[i+1:], ">")
		}
		if addr != "" {
			addrs = append(addrs, addr)
		}
	}
	return addrs
}

// SendEmail builds and submits a fresh message via SMTP
func (a *Adapter) SendEmail(args provider.SendArgs) error {
	recipients := splitAddresses(args.To)
	recipients = append(recipients, splitAddresses(args.CC)...)
	recipients = append(recipients, splitAddresses(args.BCC)...)
	if len(recipients) == 0 {
		return fmt.Errorf("no recipients")
	}

	content := buildMessageContent(buildArgs{
		fromName:  a.account.DisplayName,
		fromAddr:  a.account.Email,
		to:        args.To,
		cc:        args.CC,
		bcc:       args.BCC,
		subject:   args.Subject,
		body:      args.MessageText,
		messageID: generateMessageID(a.account.Email),
	})
	return a.sendSMTP(recipients, content)
}

func splitAddresses(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	addrs := make([]string, 0, len(parts))
	for _, p := range parts {
		if addr := strings.TrimSpace(p); addr != "" {
			addrs = append(addrs, addr)
		}
	}
	return addrs
}

type buildArgs struct {
	fromName  string
	fromAddr  string
	to        string
	cc        string
	bcc       string
	subject   string
	body      string
	messageID string
	inReplyTo string
}

// buildMessageContent assembles an RFC 5322 message with a base64 encoded
// text body
func buildMessageContent(args buildArgs) string {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("From: %s <%s>\r\n", args.fromName, args.fromAddr))
	buf.WriteString(fmt.Sprintf("To: %s\r\n", args.to))
	if args.cc != "" {
		buf.WriteString(fmt.Sprintf("Cc: %s\r\n", args.cc))
	}
	if args.bcc != "" {
		buf.WriteString(fmt.Sprintf("Bcc: %s\r\n", args.bcc))
	}
	buf.WriteString(fmt.Sprintf("Subject: =?UTF-8?B?%s?=\r\n", base64.StdEncoding.EncodeToString([]byte(args.subject))))
	buf.WriteString(fmt.Sprintf("Message-ID: %s\r\n", args.messageID))
	if args.inReplyTo != "" {
		buf.WriteString(fmt.Sprintf("In-Reply-To: %s\r\n", args.inReplyTo))
		buf.WriteString(fmt.Sprintf("References: %s\r\n", args.inReplyTo))
	}
	buf.WriteString(fmt.Sprintf("Date: %s\r\n", time.Now().Format(time.RFC1123Z)))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	buf.WriteString("Content-Transfer-Encoding: base64\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(wrapBase64(base64.StdEncoding.EncodeToString([]byte(args.body))))
	buf.WriteString("\r\n")

	return buf.String()
}

// generateMessageID returns a unique Message-ID scoped to the account domain
func generateMessageID(email string) string {
	domain := "localhost"
	if i := strings.LastIndex(email, "@"); i >= 0 {
		domain = email[i+1:]
	}
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), domain)
}

// wrapBase64 wraps base64 content to 76 characters per line
func wrapBase64(s string) string {
	var buf bytes.Buffer
	for len(s) > 76 {
		buf.WriteString(s[:76])
		buf.WriteString("\r\n")
		s = s[76:]
	}
	buf.WriteString(s)
	return buf.String()
}

// sendSMTP submits raw content to the account's SMTP server
func (a *Adapter) sendSMTP(recipients []string, content string) error {
	addr := fmt.Sprintf("%s:%d", a.account.SMTPHost, a.account.SMTPPort)

	var c *smtp.Client
	if a.account.UseSSL {
		tlsConfig := &tls.Config{ServerName: a.account.SMTPHost}
		conn, err := tls.DialWithDialer(&net.Dialer{Timeout: connectionTimeout}, "tcp", addr, tlsConfig)
		if err != nil {
			return fmt.Errorf("smtp dial: %w", err)
		}
		c, err = smtp.NewClient(conn, a.account.SMTPHost)
		if err != nil {
			conn.Close()
			return fmt.Errorf("smtp handshake: %w", err)
		}
	} else {
		var err error
		c, err = smtp.Dial(addr)
		if err != nil {
			return fmt.Errorf("smtp dial: %w", err)
		}
		if ok, _ := c.Extension("STARTTLS"); ok {
			tlsConfig := &tls.Config{ServerName: a.account.SMTPHost}
			if err := c.StartTLS(tlsConfig); err != nil {
				c.Close()
				return fmt.Errorf("starttls: %w", err)
			}
		}
	}
	defer c.Close()

	// Try PLAIN, fall back to LOGIN for servers that only offer it
	auth := smtp.PlainAuth("", a.account.Username, a.password, a.account.SMTPHost)
	if err := c.Auth(auth); err != nil {
		auth = newLoginAuth(a.account.Username, a.password)
		if err2 := c.Auth(auth); err2 != nil {
			return fmt.Errorf("smtp auth failed: %v", err)
		}
	}

	if err := c.Mail(a.account.Email); err != nil {
		return fmt.Errorf("MAIL FROM failed: %v", err)
	}
	for _, rcpt := range recipients {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("RCPT TO failed for %s: %v", rcpt, err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA failed: %v", err)
	}
	if _, err := w.Write([]byte(content)); err != nil {
		return fmt.Errorf("write failed: %v", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close failed: %v", err)
	}

	c.Quit()
	return nil
}
