package dispatch

import "fmt"

// messageSet holds the notification texts for one language.
type messageSet struct {
	AlertTitle    string
	AlertBody     func(userName string) string
	ReminderTitle string
	ReminderBody  string
}

var notificationMessages = map[string]messageSet{
	"en": {
		AlertTitle: "Emergency Alert",
		AlertBody: func(userName string) string {
			return fmt.Sprintf("%s has not checked in and may need help!", userName)
		},
		ReminderTitle: "Check-in Reminder",
		ReminderBody:  "Please check in to let your contacts know you are okay!",
	},
	"vi": {
		AlertTitle: "Cảnh báo khẩn cấp",
		AlertBody: func(userName string) string {
			return fmt.Sprintf("%s chưa check-in và có thể cần trợ giúp!", userName)
		},
		ReminderTitle: "Nhắc nhở Check-in",
		ReminderBody:  "Hãy check-in để người thân biết bạn vẫn ổn!",
	},
}

// messagesFor returns the message set for a recipient's language, falling
// back to English.
func messagesFor(language string) messageSet {
	if msgs, ok := notificationMessages[language]; ok {
		return msgs
	}
	return notificationMessages["en"]
}

func alertEmailSubject(userName string) string {
	return fmt.Sprintf("AliveCheck Alert: %s may need help", userName)
}

func alertEmailText(userName string) string {
	return fmt.Sprintf(`AliveCheck Alert

%s has not checked in and may need your help.

They were expected to check in but haven't responded. As their emergency contact, we wanted to alert you.

What you can do:
- Try calling or texting them directly
- Check on them if you're nearby
- Contact emergency services if you're concerned

This is an automated alert from AliveCheck.`, userName)
}

func alertEmailHTML(userName string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <div style="background: linear-gradient(135deg, #ff6b6b, #ee5a5a); color: white; padding: 30px; border-radius: 12px 12px 0 0; text-align: center;">
    <h1 style="margin: 0; font-size: 24px;">AliveCheck Alert</h1>
  </div>
  <div style="background: #f8f9fa; padding: 30px; border: 1px solid #e9ecef; border-top: none;">
    <p style="font-size: 18px; color: #333; margin-top: 0;">
      <strong>%s</strong> has not checked in and may need your help.
    </p>
    <p style="color: #666; line-height: 1.6;">
      They were expected to check in but haven't responded. As their emergency contact, we wanted to alert you.
    </p>
    <div style="background: white; border-radius: 8px; padding: 20px; margin: 20px 0; border-left: 4px solid #ff6b6b;">
      <h3 style="margin-top: 0; color: #333;">What you can do:</h3>
      <ul style="color: #666; line-height: 1.8; padding-left: 20px;">
        <li>Try calling or texting them directly</li>
        <li>Check on them if you're nearby</li>
        <li>Contact emergency services if you're concerned</li>
      </ul>
    </div>
  </div>
  <div style="background: #333; color: #999; padding: 20px; border-radius: 0 0 12px 12px; text-align: center; font-size: 12px;">
    <p style="margin: 0;">This is an automated alert from <strong>AliveCheck</strong></p>
  </div>
</body>
</html>`, userName)
}

func alertSMSBody(userName string) string {
	return fmt.Sprintf("AliveCheck Alert: %s has not checked in and may need help. Please try to reach them.", userName)
}

func alertTelegramText(userName string) string {
	return fmt.Sprintf("*AliveCheck Alert*\n%s has not checked in and may need help.\nPlease try to reach them.", userName)
}
