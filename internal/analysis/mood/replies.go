package mood

import "math/rand/v2"

var replyBank = map[Label][]string{
	Tired: {
		"🌙 I sense you're feeling a bit drained, brave scholar! That's totally normal - even heroes need rest. Let's take this one small step at a time. What's one tiny thing we can tackle together? You've got more strength than you realize! 💙",
		"😌 Hey there, tired warrior! Learning when you're exhausted is like fighting a boss battle on low health - let's find you a power-up! What subject is weighing on you? We'll break it down into bite-sized quests! ⚡",
		"🛡️ I can tell today's been challenging! But you know what? Showing up when you're tired shows real courage. Let's turn this into a gentle learning adventure. What would help you feel more energized about studying? 🌟",
	},
	Confused: {
		"🤔 Ah, a puzzle to solve! Confusion is just your brain saying 'I'm ready to level up!' Let's break this down step by step. What specific part has you scratching your head? I love a good mystery! 🧩",
		"🗝️ Don't worry, confusion is the first step to understanding! Think of it as standing before a locked door - we just need to find the right key. What topic is giving you trouble? Let's unlock it together! ✨",
		"🎯 Perfect! Questions mean you're thinking deeply. That's exactly what scholars do! Tell me what's puzzling you, and we'll turn this confusion into your next 'Aha!' moment. Ready for the challenge? 🚀",
	},
	Happy: {
		"🎉 I love that energy! You're absolutely crushing it, champion! That enthusiasm is your secret weapon for learning. What amazing topic shall we dive into next? Let's keep this momentum going! ⚔️",
		"✨ Yes! That's the spirit of a true learning hero! Your positive attitude is like a power-up that makes everything easier. What subject are you excited to explore? Let's turn up the adventure! 🏆",
		"🌟 Fantastic! You're radiating scholar energy! When you're this motivated, there's no limit to what you can achieve. What quest shall we embark on? I'm ready to guide you to victory! 🎮",
	},
	Neutral: {
		"🎮 Greetings, fellow scholar! I'm here and ready to turn your study session into an epic adventure. What subject would you like to conquer today? Every great quest starts with a single step! ⚔️",
		"📚 Welcome back to our learning realm! Whether you're tackling homework, preparing for exams, or just curious about something, I'm your trusty companion. What knowledge shall we unlock together? ✨",
		"🧠 Hello there, brave learner! I'm Captain Focus, and I'm excited to help you on your educational journey. What topic is calling to you today? Let's make learning feel like an adventure! 🚀",
	},
}

// Reply returns canned reply number pick (modulo the bank size) for label.
// Unknown labels use the neutral bank.
func Reply(label Label, pick int) string {
	bank, ok := replyBank[label]
	if !ok {
		bank = replyBank[Neutral]
	}
	pick %= len(bank)
	if pick < 0 {
		pick += len(bank)
	}
	return bank[pick]
}

// RandomReply picks a reply for label at random.
func RandomReply(label Label) string {
	return Reply(label, rand.IntN(3))
}
