package ui

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// NotificationSender delivers a desktop notification
type NotificationSender interface {
	Send(title, message string) error
}

// LinuxNotificationSender uses notify-send
type LinuxNotificationSender struct{}

func (l *LinuxNotificationSender) Send(title, message string) error {
	return exec.Command("notify-send", "--app-name=chainblock", title, message).Run()
}

// MacOSNotificationSender uses osascript
type MacOSNotificationSender struct{}

func (m *MacOSNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`display notification %s with title %s`, appleQuote(message), appleQuote(title))
	return exec.Command("osascript", "-e", script).Run()
}

func appleQuote(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
}

// WindowsNotificationSender shows a toast through PowerShell
type WindowsNotificationSender struct{}

func (w *WindowsNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`
		[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] | Out-Null
		[Windows.Data.Xml.Dom.XmlDocument, Windows.Data.Xml.Dom.XmlDocument, ContentType = WindowsRuntime] | Out-Null
		$doc = [Windows.Data.Xml.Dom.XmlDocument]::new()
		$doc.LoadXml(@"
<toast><visual><binding template="ToastText02"><text id="1">%s</text><text id="2">%s</text></binding></visual></toast>
"@)
		[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier("chainblock").Show([Windows.UI.Notifications.ToastNotification]::new($doc))
	`, xmlEscape(title), xmlEscape(message))
	return exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command", script).Run()
}

func xmlEscape(s string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(s)
}

// Notifier sends desktop notifications when the platform supports them
type Notifier struct {
	sender NotificationSender
}

// NewNotifier picks the sender for the current platform
func NewNotifier() *Notifier {
	switch runtime.GOOS {
	case "linux":
		return &Notifier{sender: &LinuxNotificationSender{}}
	case "darwin":
		return &Notifier{sender: &MacOSNotificationSender{}}
	case "windows":
		return &Notifier{sender: &WindowsNotificationSender{}}
	default:
		return &Notifier{}
	}
}

// NewNotifierWithSender creates a notifier over sender, which may be nil
func NewNotifierWithSender(sender NotificationSender) *Notifier {
	return &Notifier{sender: sender}
}

// Notify sends a notification, ignoring delivery errors
func (n *Notifier) Notify(title, message string) {
	if n == nil || n.sender == nil {
		return
	}
	_ = n.sender.Send(title, message)
}
