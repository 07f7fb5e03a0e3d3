package email

import "fmt"

type Content struct {
	Subject string
	HTML    string
}

func VerificationEmail(name, verifyURL string) Content {
	return Content{
		Subject: "Email confirmation",
		HTML: fmt.Sprintf(
			"<h4>Hello, %s</h4>"+
				"<p>Please confirm your email by clicking on the following link:</p>"+
				"<a href=%q>Verify Email</a>",
			name, verifyURL),
	}
}

func PasswordResetEmail(resetURL string, minutes int) Content {
	return Content{
		Subject: "Password Reset Request",
		HTML: fmt.Sprintf(
			"<p>You requested a password reset for your account.</p>"+
				"<p>Click this link to reset your password within %d minutes:</p>"+
				"<a href=%q>Reset Password</a>"+
				"<p>If you did not request this, you can ignore this email.</p>",
			minutes, resetURL),
	}
}
