// Package media моделирует вложение сообщения: активный вид медиа,
// его источник и флаг спойлера.
package media

// Kind определяет активный вид вложения.
type Kind int

const (
	None Kind = iota
	Photo
	Video
	Document
)

// String возвращает имя вида для логов.
func (k Kind) String() string {
	switch k {
	case Photo:
		return "photo"
	case Video:
		return "video"
	case Document:
		return "document"
	default:
		return "none"
	}
}

// SourceMode определяет способ передачи медиа.
type SourceMode int

const (
	// ModeUpload — загрузка локального файла.
	ModeUpload SourceMode = iota
	// ModeRemoteURL — ссылка на удаленный файл.
	ModeRemoteURL
)

// Upload — локальный файл с исходным именем. Имя сохраняется как есть,
// чтобы не-ASCII символы и эмодзи пережили передачу.
type Upload struct {
	Data     []byte
	Filename string
}

// Source — активный источник вложения: ровно один из вариантов заполнен.
type Source struct {
	Mode   SourceMode
	Upload Upload
	URL    string
}

// Attachment хранит выбранный вид медиа, оба варианта источника и флаг
// спойлера. Смена вида сбрасывает источники и спойлер, поэтому смешанного
// состояния между видами не существует. Переключение режима источника
// не стирает значение другого режима, пока не сменится сам вид.
type Attachment struct {
	kind    Kind
	mode    SourceMode
	upload  Upload
	url     string
	spoiler bool
}

// Kind возвращает активный вид вложения.
func (a *Attachment) Kind() Kind {
	return a.kind
}

// SetKind переключает активный вид. Выбор нового вида при уже активном
// очищает ранее выбранный файл, URL и флаг спойлера.
func (a *Attachment) SetKind(k Kind) {
	if a.kind == k {
		return
	}
	a.kind = k
	a.mode = ModeUpload
	a.upload = Upload{}
	a.url = ""
	a.spoiler = false
}

// SetSourceMode переключает способ передачи медиа для активного вида.
func (a *Attachment) SetSourceMode(m SourceMode) {
	a.mode = m
}

// SetUpload запоминает локальный файл и делает активным режим загрузки.
func (a *Attachment) SetUpload(data []byte, filename string) {
	a.upload = Upload{Data: data, Filename: filename}
	a.mode = ModeUpload
}

// SetRemoteURL запоминает ссылку и делает активным режим URL.
func (a *Attachment) SetRemoteURL(url string) {
	a.url = url
	a.mode = ModeRemoteURL
}

// SetSpoiler устанавливает флаг спойлера. Флаг имеет смысл только для
// фото и видео; для документа он игнорируется при отправке.
func (a *Attachment) SetSpoiler(on bool) {
	a.spoiler = on
}

// Spoiler возвращает флаг спойлера.
func (a *Attachment) Spoiler() bool {
	return a.spoiler
}

// Source возвращает активный источник. Второе значение false, когда
// в активном режиме ничего не выбрано.
func (a *Attachment) Source() (Source, bool) {
	switch a.mode {
	case ModeRemoteURL:
		if a.url == "" {
			return Source{}, false
		}
		return Source{Mode: ModeRemoteURL, URL: a.url}, true
	default:
		if len(a.upload.Data) == 0 {
			return Source{}, false
		}
		return Source{Mode: ModeUpload, Upload: a.upload}, true
	}
}

// HasMedia сообщает, что вид выбран и его активный источник заполнен.
func (a *Attachment) HasMedia() bool {
	if a.kind == None {
		return false
	}
	_, ok := a.Source()
	return ok
}
