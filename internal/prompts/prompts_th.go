package prompts

// RepliesTH is the Thai reply set.
var RepliesTH = &Replies{
	ImageStoredFmt: "ได้รับรูปแล้วครับ 📷 พิมพ์ \"%s\" ภายใน 2 นาที เพื่อให้บอทอ่านข้อความในรูป",
	ReadCommand:    "อ่านรูป",

	SearchNotFound:  "ไม่พบข้อมูลที่ค้นหาครับ ลองใช้คำค้นอื่นดูนะครับ",
	SearchHeaderFmt: "พบ %d รายการ:",
	SearchHitFmt:    "• [%s] %s\n  %s",
	SearchMoreFmt:   "...และอีก %d รายการ ลองระบุคำค้นให้แคบลงครับ",
	SearchApology:   "ขออภัย ระบบค้นหาขัดข้องชั่วคราว กรุณาลองใหม่อีกครั้งครับ",
	CodeNotFoundFmt: "ไม่พบข้อมูลของรหัส %s ครับ",
	CodeTitleFmt:    "🔧 [%s] %s",
	CodeStepsTitle:  "ขั้นตอนแนะนำ:",
	CodeApology:     "ขออภัย ไม่สามารถเปิดฐานข้อมูลรหัสได้ในขณะนี้ครับ",

	PaymentAskReference: "กรุณาส่งหมายเลขอ้างอิงการชำระเงิน (ตัวเลขอย่างน้อย 5 หลัก) ด้วยครับ เช่น \"เช็คสถานะการชำระ 574981\"",
	PaymentSuccessFmt:   "✅ รายการ %s ชำระเงินสำเร็จแล้วครับ (สถานะ: %s)",
	PaymentFailureFmt:   "❌ รายการ %s ยังไม่สำเร็จครับ (สถานะ: %s)",
	PaymentNotFoundFmt:  "ไม่พบรายการชำระเงินหมายเลข %s ครับ กรุณาตรวจสอบหมายเลขอีกครั้ง",
	PaymentApology:      "ขออภัย ไม่สามารถตรวจสอบสถานะการชำระเงินได้ในตอนนี้ครับ",

	OCRResultFmt: "📝 ข้อความในรูป:\n%s",
	OCRNoText:    "ไม่พบข้อความในรูปครับ",
	OCRApology:   "ขออภัย ไม่สามารถอ่านข้อความจากรูปได้ในตอนนี้ครับ",

	AIAck:        "กำลังคิดคำตอบให้อยู่นะครับ... ⏳",
	AIApology:    "ขออภัย ระบบ AI ตอบไม่ได้ในตอนนี้",
	EmptyPrompt:  "สวัสดีครับ มีอะไรให้ช่วยไหมครับ?",
	SystemPrompt: "คุณคือผู้ช่วยฝ่ายบริการลูกค้า ตอบเป็นภาษาเดียวกับผู้ใช้ กระชับ สุภาพ และตรงประเด็น",
}
