package services

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"time"

	"github.com/inbox-agent/core/internal/database/models"
)

const (
	connectionTimeout = 10 * time.Second
)

// ConnectionTestResult reports the outcome of one connection probe
type ConnectionTestResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// AccountConnectionReport bundles the IMAP and SMTP probe results for an
// account
type AccountConnectionReport struct {
	IMAP ConnectionTestResult `json:"imap"`
	SMTP ConnectionTestResult `json:"smtp"`
}

// TestConnection probes the account's IMAP and SMTP servers with the stored
// credentials
func (s *AccountService) TestConnection(id, userID uint) (*AccountConnectionReport, error) {
	account, err := s.GetAccountByIDAndUserID(id, userID)
	if err != nil {
		return nil, err
	}

	password, err := s.decryptPassword(account.PasswordEncrypted)
	if err != nil {
		return nil, err
	}

	report := &AccountConnectionReport{
		IMAP: testIMAPConnectionInternal(buildAddress(account.IMAPHost, account.IMAPPort), account.Username, password, account.UseSSL),
		SMTP: testSMTPConnectionInternal(buildAddress(account.SMTPHost, account.SMTPPort), account.Username, password, account.UseSSL),
	}

	_ = s.logService.LogInfo(userID, models.LogModuleAccount, "test_connection", "Account connection tested", map[string]interface{}{
		"account_id":   account.ID,
		"email":        account.Email,
		"imap_success": report.IMAP.Success,
		"smtp_success": report.SMTP.Success,
	})

	return report, nil
}

// buildAddress builds a host:port address string
func buildAddress(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}

// testIMAPConnectionInternal tests an IMAP connection
func testIMAPConnectionInternal(addr, username, password string, useSSL bool) ConnectionTestResult {
	var conn net.Conn
	var err error

	// Set up dialer with timeout
	dialer := &net.Dialer{
		Timeout: connectionTimeout,
	}

	if useSSL {
		// Connect with TLS
		tlsConfig := &tls.Config{
			InsecureSkipVerify: false,
		}
		conn, err = tls.DialWithDialer(dialer, "tcp", addr, tlsConfig)
	} else {
		// Connect without TLS
		conn, err = dialer.Dial("tcp", addr)
	}

	if err != nil {
		return ConnectionTestResult{
			Success: false,
			Message: fmt.Sprintf("Failed to connect to IMAP server: %v", err),
		}
	}
	defer conn.Close()

	// Set read deadline
	conn.SetReadDeadline(time.Now().Add(connectionTimeout))

	// Read server greeting
	buf := make([]byte, 1024)
	n, err := conn.Read(buf)
	if err != nil {
		return ConnectionTestResult{
			Success: false,
			Message: fmt.Sprintf("Failed to read IMAP greeting: %v", err),
		}
	}

	greeting := string(buf[:n])
	if len(greeting) < 4 || greeting[:4] != "* OK" {
		return ConnectionTestResult{
			Success: false,
			Message: "Invalid IMAP server response",
		}
	}

	// Try to login
	loginCmd := fmt.Sprintf("A001 LOGIN %s %s\r\n", username, password)
	_, err = conn.Write([]byte(loginCmd))
	if err != nil {
		return ConnectionTestResult{
			Success: false,
			Message: fmt.Sprintf("Failed to send login command: %v", err),
		}
	}

	// Read login response
	conn.SetReadDeadline(time.Now().Add(connectionTimeout))
	n, err = conn.Read(buf)
	if err != nil {
		return ConnectionTestResult{
			Success: false,
			Message: fmt.Sprintf("Failed to read login response: %v", err),
		}
	}

	response := string(buf[:n])
	if len(response) >= 6 && response[:6] == "A001 OK" {
		// Logout
		conn.Write([]byte("A002 LOGOUT\r\n"))
		return ConnectionTestResult{
			Success: true,
			Message: "IMAP connection and authentication successful",
		}
	}

	return ConnectionTestResult{
		Success: false,
		Message: "IMAP authentication failed: " + response,
	}
}

// testSMTPConnectionInternal tests an SMTP connection
func testSMTPConnectionInternal(addr, username, password string, useSSL bool) ConnectionTestResult {
	var client *smtp.Client
	var err error

	if useSSL {
		// Connect with TLS (SMTPS)
		tlsConfig := &tls.Config{
			InsecureSkipVerify: false,
		}
		conn, err := tls.DialWithDialer(&net.Dialer{Timeout: connectionTimeout}, "tcp", addr, tlsConfig)
		if err != nil {
			return ConnectionTestResult{
				Success: false,
				Message: fmt.Sprintf("Failed to connect to SMTP server: %v", err),
			}
		}
		defer conn.Close()

		// Extract host from address
		host, _, _ := net.SplitHostPort(addr)
		client, err = smtp.NewClient(conn, host)
		if err != nil {
			return ConnectionTestResult{
				Success: false,
				Message: fmt.Sprintf("Failed to create SMTP client: %v", err),
			}
		}
	} else {
		// Connect without TLS, may use STARTTLS
		client, err = smtp.Dial(addr)
		if err != nil {
			return ConnectionTestResult{
				Success: false,
				Message: fmt.Sprintf("Failed to connect to SMTP server: %v", err),
			}
		}

		// Try STARTTLS if available
		if ok, _ := client.Extension("STARTTLS"); ok {
			tlsConfig := &tls.Config{
				InsecureSkipVerify: false,
			}
			if err := client.StartTLS(tlsConfig); err != nil {
				// STARTTLS failed, but we can continue without it
			}
		}
	}
	defer client.Close()

	// Try to authenticate
	host, _, _ := net.SplitHostPort(addr)
	auth := smtp.PlainAuth("", username, password, host)
	if err := client.Auth(auth); err != nil {
		return ConnectionTestResult{
			Success: false,
			Message: fmt.Sprintf("SMTP authentication failed: %v", err),
		}
	}

	return ConnectionTestResult{
		Success: true,
		Message: "SMTP connection and authentication successful",
	}
}
