package reply

type phraseKey int

const (
	missingName phraseKey = iota
	missingDateTime
	missingPeople
	missingReservationID
	generic
	hours
	menuEmpty
	created
	updated
	cancelled
	apology
)

var phrases = map[string]map[phraseKey]string{
	"en": {
		missingName:          "Could you share the name for the reservation?",
		missingDateTime:      "What date and time should we book?",
		missingPeople:        "How many people will be attending?",
		missingReservationID: "Please provide the reservation ID.",
		generic:              "How can I help you today?",
		hours:                "We are open daily from 10:00 to 22:00.",
		menuEmpty:            "I can help with the menu. What are you interested in?",
		created:              "Reservation created.",
		updated:              "Reservation updated.",
		cancelled:            "Reservation cancelled.",
		apology:              "I'm sorry, I couldn't process your request.",
	},
	"ru": {
		missingName:          "Подскажите, на какое имя оформить бронь?",
		missingDateTime:      "На какую дату и время оформить бронь?",
		missingPeople:        "Сколько человек будет?",
		missingReservationID: "Назовите номер брони, пожалуйста.",
		generic:              "Чем могу помочь?",
		hours:                "Мы работаем ежедневно с 10:00 до 22:00.",
		menuEmpty:            "Могу рассказать про меню. Что вас интересует?",
		created:              "Бронь создана.",
		updated:              "Бронь обновлена.",
		cancelled:            "Бронь отменена.",
		apology:              "Извините, не удалось обработать ваш запрос.",
	},
	"uk": {
		missingName:          "Підкажіть, на чиє ім'я оформити бронювання?",
		missingDateTime:      "На яку дату та час зробити бронювання?",
		missingPeople:        "Скільки людей буде?",
		missingReservationID: "Повідомте номер бронювання, будь ласка.",
		generic:              "Чим можу допомогти?",
		hours:                "Ми працюємо щодня з 10:00 до 22:00.",
		menuEmpty:            "Можу підказати по меню. Що саме цікавить?",
		created:              "Бронювання створено.",
		updated:              "Бронювання оновлено.",
		cancelled:            "Бронювання скасовано.",
		apology:              "Вибачте, не вдалося обробити ваш запит.",
	},
	"sk": {
		missingName:          "Na aké meno mám rezerváciu vytvoriť?",
		missingDateTime:      "Na aký dátum a čas to má byť?",
		missingPeople:        "Pre koľko osôb bude rezervácia?",
		missingReservationID: "Prosím, uveďte ID rezervácie.",
		generic:              "Ako vám môžem pomôcť?",
		hours:                "Máme otvorené denne od 10:00 do 22:00.",
		menuEmpty:            "Môžem pomôcť s menu. Čo vás zaujíma?",
		created:              "Rezervácia bola vytvorená.",
		updated:              "Rezervácia bola upravená.",
		cancelled:            "Rezervácia bola zrušená.",
		apology:              "Prepáčte, vašu požiadavku sa nepodarilo spracovať.",
	},
}

func table(lang string) map[phraseKey]string {
	if t, ok := phrases[lang]; ok {
		return t
	}
	return phrases["en"]
}
