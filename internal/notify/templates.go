package notify

import (
	"fmt"
	"time"
)

const (
	otpSubject     = "Your Security Code"
	sessionSubject = "Lecture Attendance Alert"
)

func otpBody(name, code string, ttl time.Duration) string {
	return fmt.Sprintf(`<div style="font-family: Arial, sans-serif; line-height: 1.6;">
<p>Dear %s,</p>
<p>Use the code below to complete your login:</p>
<div style="font-size: 32px; letter-spacing: 8px; font-weight: bold;">%s</div>
<p>This code is valid for %d minutes. Do not share it with anyone.</p>
<p>Attendance Management System</p>
</div>`, name, code, int(ttl.Minutes()))
}

func sessionBody(name, subjectName string, window time.Duration) string {
	return fmt.Sprintf(`<div style="font-family: Arial, sans-serif; line-height: 1.6;">
<p>Dear %s,</p>
<p>Attendance for your lecture in <strong>%s</strong> is now open.
Please mark your attendance promptly. You have <strong>%d minutes</strong> to complete it.</p>
<p>Best regards,<br/>Attendance Management System</p>
</div>`, name, subjectName, int(window.Minutes()))
}
