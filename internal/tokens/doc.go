// Package tokens хранит таблицу ожидающих токенов корреляции.
//
// AsyncTask перед внешним вызовом регистрирует токен (Put), обратный
// вызов завершения забирает его (Take). Take атомарен: повторная
// доставка того же токена получает ErrUnknownToken.
//
// Memory — таблица в памяти процесса, Redis — внешняя таблица для
// нескольких процессов координатора.
package tokens
